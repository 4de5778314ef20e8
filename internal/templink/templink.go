// Package templink issues and verifies signed temporary-access tokens for
// virtual filesystem paths (spec §4.J). A token is an HMAC-SHA256 MAC over
// the path and expiry, so possession of the token is sufficient proof of
// authorization without a server-side lookup.
package templink

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/objectfs/objectfs/pkg/errors"
)

// Signer generates and verifies temp-link tokens for a fixed secret.
type Signer struct {
	secret []byte
}

// New creates a Signer. secret should be at least 32 bytes; callers
// typically pass Global.TempLinkSecretKey from the loaded configuration.
func New(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// noExpiry marks a token that never expires (ttl <= 0).
const noExpiry int64 = 0

// Generate returns a token granting access to path until it expires. A ttl
// of zero or less produces a permanent token: Verify never checks its
// expiry.
func (s *Signer) Generate(path string, ttl time.Duration) string {
	expiry := noExpiry
	if ttl > 0 {
		expiry = time.Now().Add(ttl).Unix()
	}
	payload := encodePayload(path, expiry)
	mac := s.sign(payload)
	return payload + "." + base64.RawURLEncoding.EncodeToString(mac)
}

// Verify checks a token's signature and expiry, returning the path it
// grants access to.
func (s *Signer) Verify(token string) (string, error) {
	idx := strings.LastIndex(token, ".")
	if idx < 0 {
		return "", errors.InvalidArgument("templink", "malformed token")
	}
	payload, sigPart := token[:idx], token[idx+1:]

	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return "", errors.InvalidArgument("templink", "malformed token signature")
	}
	want := s.sign(payload)
	if subtle.ConstantTimeCompare(sig, want) != 1 {
		return "", errors.Invalid("templink", "invalid token signature")
	}

	path, expiry, err := decodePayload(payload)
	if err != nil {
		return "", errors.InvalidArgument("templink", "malformed token payload")
	}
	if expiry != noExpiry && time.Now().Unix() > expiry {
		return "", errors.Expired("templink", "token has expired")
	}
	return path, nil
}

func (s *Signer) sign(payload string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

func encodePayload(path string, expiry int64) string {
	raw := strconv.FormatInt(expiry, 10) + ":" + path
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodePayload(payload string) (path string, expiry int64, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", 0, err
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("bad payload")
	}
	expiry, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return "", 0, err
	}
	return parts[1], expiry, nil
}
