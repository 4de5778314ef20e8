package backend

import (
	"context"
	"io"
	"time"

	"github.com/objectfs/objectfs/internal/circuit"
	"github.com/objectfs/objectfs/internal/metrics"
	"github.com/objectfs/objectfs/pkg/health"
	"github.com/objectfs/objectfs/pkg/retry"
	"github.com/objectfs/objectfs/pkg/types"
)

// Resilient wraps an Adapter with a per-instance circuit breaker, the
// shared retry policy, and Prometheus instrumentation (spec §4.A ambient
// additions: "one breaker per adapter instance, guarding outbound HTTP
// calls" and "Prometheus counters/histograms per adapter operation").
// Local mounts skip this wrapper at construction time since they do no
// outbound I/O.
type Resilient struct {
	inner     Adapter
	name      string
	component string
	breaker   *circuit.CircuitBreaker
	retryer   *retry.Retryer
	collector *metrics.Collector
	tracker   *health.Tracker
}

// Instrument wraps inner with breaker, retryer, collector, and tracker. Any
// of the four may be nil, in which case that concern is skipped. component
// is the health-tracker component name (the adapter instance id).
func Instrument(name, component string, inner Adapter, breaker *circuit.CircuitBreaker, retryer *retry.Retryer, collector *metrics.Collector, tracker *health.Tracker) Adapter {
	return &Resilient{inner: inner, name: name, component: component, breaker: breaker, retryer: retryer, collector: collector, tracker: tracker}
}

func (r *Resilient) guard(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	call := fn
	if r.retryer != nil {
		inner := call
		call = func(ctx context.Context) error { return r.retryer.DoWithContext(ctx, inner) }
	}
	if r.breaker != nil {
		inner := call
		call = func(ctx context.Context) error { return r.breaker.ExecuteWithContext(ctx, inner) }
	}
	err := call(ctx)
	if r.collector != nil {
		r.collector.RecordOperation(r.name+"."+op, time.Since(start), 0, err == nil)
		if err != nil {
			r.collector.RecordError(r.name+"."+op, err)
		}
	}
	if r.tracker != nil {
		if err == nil {
			r.tracker.RecordSuccess(r.component)
		} else {
			r.tracker.RecordError(r.component, err)
		}
	}
	return err
}

func (r *Resilient) ResolveRoot(subPath string) (string, error) { return r.inner.ResolveRoot(subPath) }

func (r *Resilient) ListDir(ctx context.Context, root, rel string, page ListPage) (entries []types.DirEntry, total int, err error) {
	err = r.guard(ctx, "list_dir", func(ctx context.Context) error {
		var e error
		entries, total, e = r.inner.ListDir(ctx, root, rel, page)
		return e
	})
	return
}

func (r *Resilient) ReadFile(ctx context.Context, root, rel string) (data []byte, err error) {
	err = r.guard(ctx, "read_file", func(ctx context.Context) error {
		var e error
		data, e = r.inner.ReadFile(ctx, root, rel)
		return e
	})
	return
}

func (r *Resilient) StreamFile(ctx context.Context, root, rel string, rng *Range) (resp *StreamResponse, err error) {
	err = r.guard(ctx, "stream_file", func(ctx context.Context) error {
		var e error
		resp, e = r.inner.StreamFile(ctx, root, rel, rng)
		return e
	})
	return
}

func (r *Resilient) WriteFile(ctx context.Context, root, rel string, data []byte) error {
	return r.guard(ctx, "write_file", func(ctx context.Context) error {
		return r.inner.WriteFile(ctx, root, rel, data)
	})
}

func (r *Resilient) WriteFileStream(ctx context.Context, root, rel string, chunks io.Reader) (n int64, err error) {
	err = r.guard(ctx, "write_file_stream", func(ctx context.Context) error {
		var e error
		n, e = r.inner.WriteFileStream(ctx, root, rel, chunks)
		return e
	})
	return
}

func (r *Resilient) Mkdir(ctx context.Context, root, rel string) error {
	return r.guard(ctx, "mkdir", func(ctx context.Context) error { return r.inner.Mkdir(ctx, root, rel) })
}

func (r *Resilient) Delete(ctx context.Context, root, rel string) error {
	return r.guard(ctx, "delete", func(ctx context.Context) error { return r.inner.Delete(ctx, root, rel) })
}

func (r *Resilient) StatFile(ctx context.Context, root, rel string) (stat *types.FileStat, err error) {
	err = r.guard(ctx, "stat_file", func(ctx context.Context) error {
		var e error
		stat, e = r.inner.StatFile(ctx, root, rel)
		return e
	})
	return
}

func (r *Resilient) Exists(ctx context.Context, root, rel string) (ok bool, err error) {
	err = r.guard(ctx, "exists", func(ctx context.Context) error {
		var e error
		ok, e = r.inner.Exists(ctx, root, rel)
		return e
	})
	return
}

func (r *Resilient) StatPath(ctx context.Context, root, rel string) (probe *types.PathProbe, err error) {
	err = r.guard(ctx, "stat_path", func(ctx context.Context) error {
		var e error
		probe, e = r.inner.StatPath(ctx, root, rel)
		return e
	})
	return
}

func (r *Resilient) Move(ctx context.Context, root, src, dst string) error {
	return r.guard(ctx, "move", func(ctx context.Context) error { return r.inner.Move(ctx, root, src, dst) })
}

func (r *Resilient) Rename(ctx context.Context, root, src, dst string) error {
	return r.guard(ctx, "rename", func(ctx context.Context) error { return r.inner.Rename(ctx, root, src, dst) })
}

func (r *Resilient) Copy(ctx context.Context, root, src, dst string, overwrite bool) error {
	return r.guard(ctx, "copy", func(ctx context.Context) error {
		return r.inner.Copy(ctx, root, src, dst, overwrite)
	})
}
