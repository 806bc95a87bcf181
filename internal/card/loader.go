package card

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyellow/cardbot/internal/cardstore"
	domerrors "github.com/garyellow/cardbot/internal/errors"
	"github.com/garyellow/cardbot/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Payload is a parsed card document. Each Load returns a fresh value.
type Payload map[string]any

// Loader resolves catalog indices to parsed payloads. Nothing is cached
// between calls; concurrent reads of the same document share one store read.
type Loader struct {
	store   cardstore.Store
	catalog Catalog
	metrics *metrics.Metrics
	timeout time.Duration
	group   singleflight.Group
}

// DefaultReadTimeout bounds one shared store read.
const DefaultReadTimeout = 10 * time.Second

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderMetrics records load counts and latency.
func WithLoaderMetrics(m *metrics.Metrics) LoaderOption {
	return func(l *Loader) { l.metrics = m }
}

// WithReadTimeout bounds each shared store read. Callers still stop waiting
// when their own context ends.
func WithReadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// NewLoader creates a loader over store for the given catalog.
func NewLoader(store cardstore.Store, catalog Catalog, opts ...LoaderOption) *Loader {
	l := &Loader{store: store, catalog: catalog, timeout: DefaultReadTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Catalog returns the catalog the loader resolves against.
func (l *Loader) Catalog() Catalog { return l.catalog }

// Load reads and parses the payload at index. Errors are *PayloadError values
// wrapping ErrPayloadNotFound or ErrPayloadMalformed; other store failures are
// wrapped as-is.
func (l *Loader) Load(ctx context.Context, index int) (Payload, error) {
	name, ok := l.catalog.Name(index)
	if !ok {
		return nil, domerrors.NewPayloadError(index, "",
			fmt.Errorf("%w: index outside catalog of %d", domerrors.ErrPayloadNotFound, l.catalog.Len()))
	}

	start := time.Now()
	payload, status, err := l.load(ctx, name)
	l.metrics.RecordCardLoad(l.store.Name(), name, status, time.Since(start).Seconds())
	if err != nil {
		return nil, domerrors.NewPayloadError(index, name, err)
	}
	return payload, nil
}

func (l *Loader) load(ctx context.Context, name string) (Payload, string, error) {
	// The shared read is detached from the caller that starts it.
	ch := l.group.DoChan(name, func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		return l.store.Get(readCtx, name)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, "canceled", ctx.Err()
	}
	if res.Shared {
		l.metrics.RecordCardLoadDedup()
	}
	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, cardstore.ErrNotFound) {
			return nil, "not_found", fmt.Errorf("%w: %w", domerrors.ErrPayloadNotFound, err)
		}
		return nil, "error", err
	}

	// Bytes may be shared with other callers; parsing gives each its own map.
	payload, err := parsePayload(v.([]byte))
	if err != nil {
		return nil, "malformed", err
	}
	return payload, "ok", nil
}

func parsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", domerrors.ErrPayloadMalformed, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: document is not a JSON object", domerrors.ErrPayloadMalformed)
	}
	return p, nil
}

// CardStatus is the audit result for one catalog entry.
type CardStatus struct {
	Index int
	Name  string
	Err   error
}

// OK reports whether the entry loaded and parsed.
func (s CardStatus) OK() bool { return s.Err == nil }

const auditConcurrency = 4

// Audit loads every catalog entry and reports each result in catalog order.
// The returned error is non-nil only if ctx ends before the audit completes.
func (l *Loader) Audit(ctx context.Context) ([]CardStatus, error) {
	results := make([]CardStatus, l.catalog.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(auditConcurrency)
	for i, name := range l.catalog.names {
		g.Go(func() error {
			_, err := l.Load(gctx, i)
			results[i] = CardStatus{Index: i, Name: name, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
