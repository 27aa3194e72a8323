package ton

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	seedWords       = 24
	pbkdf2Iters     = 100000
	pbkdf2Salt      = "TON default seed"
)

// KeyPair is the single typed result of seed derivation. No runtime shape
// probing: every signer in the system works with this struct.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// DeriveKeys turns a 24-word seed phrase into an ed25519 key pair using the
// standard TON scheme: HMAC-SHA512 over the joined words, then PBKDF2-SHA512
// with the fixed salt.
func DeriveKeys(phrase string) (*KeyPair, error) {
	words := strings.Fields(strings.TrimSpace(phrase))
	if len(words) != seedWords {
		return nil, ErrInvalidSeedPhrase
	}

	mac := hmac.New(sha512.New, []byte(strings.Join(words, " ")))
	entropy := mac.Sum(nil)

	seed := pbkdf2.Key(entropy, []byte(pbkdf2Salt), pbkdf2Iters, ed25519.SeedSize, sha512.New)
	priv := ed25519.NewKeyFromSeed(seed)

	return &KeyPair{
		Public:  priv.Public().(ed25519.PublicKey),
		Private: priv,
	}, nil
}

// Sign signs a cell hash. A nil key means corrupted config, surfaced as a
// fatal SigningError rather than a panic in the send path.
func (k *KeyPair) Sign(payload []byte) ([]byte, error) {
	if k == nil || len(k.Private) != ed25519.PrivateKeySize {
		return nil, &SigningError{Reason: "key pair is not initialized"}
	}
	return ed25519.Sign(k.Private, payload), nil
}
