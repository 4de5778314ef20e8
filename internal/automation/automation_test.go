package automation

import (
	"context"
	"testing"
	"time"

	"github.com/objectfs/objectfs/internal/taskqueue"
	"github.com/objectfs/objectfs/pkg/types"
)

type fakeRuleSource struct {
	rules []*types.AutomationRule
}

func (f *fakeRuleSource) ListEnabledRulesForEvent(event types.AutomationEvent) ([]*types.AutomationRule, error) {
	var out []*types.AutomationRule
	for _, r := range f.rules {
		if r.Enabled && r.Event == event {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestNotifyEnqueuesMatchingRuleOnly(t *testing.T) {
	rules := &fakeRuleSource{rules: []*types.AutomationRule{
		{ID: "watermark-photos", Event: types.EventFileWritten, Enabled: true, PathPattern: "/local/photos", FilenameRegex: `\.jpg$`, ProcessorType: "watermark"},
		{ID: "index-all", Event: types.EventFileWritten, Enabled: true, ProcessorType: "vector_index"},
		{ID: "disabled", Event: types.EventFileWritten, Enabled: false, ProcessorType: "watermark"},
	}}

	q := taskqueue.New(10)
	seen := make(chan *types.Task, 10)
	q.RegisterHandler("process_file", func(ctx context.Context, task *types.Task) (string, error) {
		seen <- task
		return "ok", nil
	})
	if err := q.StartWorker(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer q.StopWorker()

	m := New(rules, q, nil)
	m.Notify(context.Background(), types.EventFileWritten, "/local/photos/sunset.jpg")

	var got []*types.Task
	deadline := time.After(time.Second)
	for len(got) < 2 {
		select {
		case task := <-seen:
			got = append(got, task)
		case <-deadline:
			t.Fatalf("only saw %d enqueued tasks, want 2", len(got))
		}
	}

	select {
	case extra := <-seen:
		t.Fatalf("unexpected extra task enqueued: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifyFiltersOutNonMatchingFilename(t *testing.T) {
	rules := &fakeRuleSource{rules: []*types.AutomationRule{
		{ID: "watermark-photos", Event: types.EventFileWritten, Enabled: true, PathPattern: "/local/photos", FilenameRegex: `\.jpg$`, ProcessorType: "watermark"},
	}}

	q := taskqueue.New(10)
	seen := make(chan *types.Task, 10)
	q.RegisterHandler("process_file", func(ctx context.Context, task *types.Task) (string, error) {
		seen <- task
		return "ok", nil
	})
	if err := q.StartWorker(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer q.StopWorker()

	m := New(rules, q, nil)
	m.Notify(context.Background(), types.EventFileWritten, "/local/photos/report.pdf")

	select {
	case task := <-seen:
		t.Fatalf("unexpected task enqueued for non-matching filename: %+v", task)
	case <-time.After(100 * time.Millisecond):
	}
}
