package ton

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 0}
}

func TestClientRetriesOnRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testPolicy(), zap.NewNop())
	err := c.SendBOC(context.Background(), []byte{0xB5, 0xEE})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestClientRateLimitExhaustsAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testPolicy(), zap.NewNop())
	err := c.SendBOC(context.Background(), []byte{0xB5, 0xEE})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, 3, calls)
}

func TestClientDoesNotRetryContractErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "exitcode 34", "code": 500})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testPolicy(), zap.NewNop())
	err := c.SendBOC(context.Background(), []byte{0xB5, 0xEE})
	require.Error(t, err)

	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrKindContractRejected, ce.Kind)
	assert.Equal(t, 1, calls, "non-rate-limit errors must fail fast")
}

func TestClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testPolicy(), zap.NewNop())
	_, err := c.GetAccountState(context.Background(), "addr")
	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrKindMalformed, ce.Kind)
}

func TestSeqnoUninitializedAccountIsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.Contains(r.URL.Path, "getAddressInformation"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"balance": "0", "state": "uninitialized"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testPolicy(), zap.NewNop())
	seqno, err := c.Seqno(context.Background(), "addr")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), seqno)
}

func TestSeqnoActiveAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "getAddressInformation") {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": map[string]any{"balance": "150000000", "state": "active"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": map[string]any{
				"exit_code": 0,
				"stack":     [][]any{{"num", "0x7"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testPolicy(), zap.NewNop())
	seqno, err := c.Seqno(context.Background(), "addr")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), seqno)
}

func TestGetAccountStateBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"balance": "580000000", "state": "active"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testPolicy(), zap.NewNop())
	state, err := c.GetAccountState(context.Background(), "addr")
	require.NoError(t, err)
	assert.True(t, state.Initialized())
	assert.Equal(t, "580000000", state.BalanceNano.String())
}
