package store

import (
	"path/filepath"
	"testing"

	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "foxelfs.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAdapterRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rec := &types.StorageAdapter{ID: "a1", Name: "local disk", Type: "local", Enabled: true, Path: "/local"}
	if err := s.PutAdapter(rec); err != nil {
		t.Fatalf("PutAdapter failed: %v", err)
	}

	got, err := s.GetAdapter("a1")
	if err != nil {
		t.Fatalf("GetAdapter failed: %v", err)
	}
	if got.Name != rec.Name || got.Path != rec.Path {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, rec)
	}

	enabled, err := s.ListEnabledAdapters()
	if err != nil || len(enabled) != 1 {
		t.Fatalf("ListEnabledAdapters = %v, %v", enabled, err)
	}

	if err := s.DeleteAdapter("a1"); err != nil {
		t.Fatalf("DeleteAdapter failed: %v", err)
	}
	if _, err := s.GetAdapter("a1"); !errors.IsNotFound(err) {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
}

func TestRuleListingFiltersByEventAndEnabled(t *testing.T) {
	s := openTestStore(t)

	rules := []*types.AutomationRule{
		{ID: "r1", Event: types.EventFileWritten, Enabled: true, ProcessorType: "watermark"},
		{ID: "r2", Event: types.EventFileWritten, Enabled: false, ProcessorType: "watermark"},
		{ID: "r3", Event: types.EventFileDeleted, Enabled: true, ProcessorType: "vector_index"},
	}
	for _, r := range rules {
		if err := s.PutRule(r); err != nil {
			t.Fatalf("PutRule failed: %v", err)
		}
	}

	written, err := s.ListEnabledRulesForEvent(types.EventFileWritten)
	if err != nil {
		t.Fatalf("ListEnabledRulesForEvent failed: %v", err)
	}
	if len(written) != 1 || written[0].ID != "r1" {
		t.Errorf("expected only r1, got %v", written)
	}
}
