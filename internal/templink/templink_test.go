package templink

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/objectfs/objectfs/pkg/errors"
)

func TestGenerateThenVerifyRoundTrips(t *testing.T) {
	s := New("super-secret-key-material-0123456789")
	tok := s.Generate("/local/report.pdf", time.Minute)

	path, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if path != "/local/report.pdf" {
		t.Errorf("path = %q, want /local/report.pdf", path)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	s := New("super-secret-key-material-0123456789")
	tok := s.Generate("/local/report.pdf", time.Minute)

	tampered := tok[:len(tok)-1] + "x"
	if _, err := s.Verify(tampered); err == nil {
		t.Error("expected tampered token to fail verification")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	s := New("super-secret-key-material-0123456789")
	// Generate treats ttl <= 0 as a permanent link, so sign a payload whose
	// expiry is already in the past the same way Generate does.
	payload := encodePayload("/local/report.pdf", time.Now().Add(-time.Minute).Unix())
	tok := payload + "." + base64.RawURLEncoding.EncodeToString(s.sign(payload))

	_, err := s.Verify(tok)
	if err == nil {
		t.Fatal("expected expired token to fail")
	}
	var ofsErr *errors.ObjectFSError
	if !asObjectFSError(err, &ofsErr) || ofsErr.Code != errors.ErrCodeVFSExpired {
		t.Errorf("expected VFS_EXPIRED, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	s1 := New("key-one-0123456789012345678901234567")
	s2 := New("key-two-0123456789012345678901234567")
	tok := s1.Generate("/local/report.pdf", time.Minute)

	if _, err := s2.Verify(tok); err == nil {
		t.Error("expected token signed with a different secret to fail verification")
	}
}

func asObjectFSError(err error, target **errors.ObjectFSError) bool {
	if ofsErr, ok := err.(*errors.ObjectFSError); ok {
		*target = ofsErr
		return true
	}
	return false
}
