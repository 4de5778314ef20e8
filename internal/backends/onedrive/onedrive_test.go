package onedrive

import (
	"context"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestAccessTokenReusesUnexpiredToken(t *testing.T) {
	tm := newTokenManager("id", "secret", "common", "refresh")
	tm.tok = &oauth2.Token{AccessToken: "cached", Expiry: time.Now().Add(1 * time.Hour)}

	tok, err := tm.accessToken(context.Background())
	if err != nil {
		t.Fatalf("accessToken failed: %v", err)
	}
	if tok != "cached" {
		t.Errorf("token = %q, want cached (should not have refreshed)", tok)
	}
}

func TestAccessTokenTreatsNearExpiryAsStale(t *testing.T) {
	tm := newTokenManager("id", "secret", "common", "refresh")
	tm.tok = &oauth2.Token{AccessToken: "about-to-expire", Expiry: time.Now().Add(1 * time.Minute)}

	// refreshMargin is 5 minutes, so a token expiring in 1 minute must be
	// treated as stale and trigger a refresh attempt (which will fail
	// here since there's no real token endpoint — the point is that it
	// doesn't just return the stale cached value).
	_, err := tm.accessToken(context.Background())
	if err == nil {
		t.Error("expected a refresh attempt (and failure) for a near-expiry token, got nil error")
	}
}

func TestPathEscapeSegmentsHandlesSpacesAndSlashes(t *testing.T) {
	got := pathEscapeSegments("My Folder/sub item.txt")
	want := "My%20Folder/sub%20item.txt"
	if got != want {
		t.Errorf("pathEscapeSegments = %q, want %q", got, want)
	}
}
