package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proxybuy/backend/internal/http/dto"
	"github.com/proxybuy/backend/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OpsHandler serves health and the manual sweep trigger.
type OpsHandler struct {
	sweep *services.SweepService
	pool  *pgxpool.Pool
	rdb   *redis.Client
	log   *zap.Logger
}

func NewOpsHandler(sweep *services.SweepService, pool *pgxpool.Pool, rdb *redis.Client, log *zap.Logger) *OpsHandler {
	return &OpsHandler{sweep: sweep, pool: pool, rdb: rdb, log: log}
}

func (h *OpsHandler) Health(c *fiber.Ctx) error {
	if h.pool != nil {
		if err := h.pool.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "postgres": err.Error()})
		}
	}
	if h.rdb != nil {
		if err := h.rdb.Ping(c.Context()).Err(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "redis": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// RunSweep triggers one pass out of schedule. Тот же код, что и по тикеру.
func (h *OpsHandler) RunSweep(c *fiber.Ctx) error {
	stats, err := h.sweep.Run(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: stats})
}
