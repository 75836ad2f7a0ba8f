package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlgend/internal/compute"
	"sqlgend/internal/engine"
	"sqlgend/internal/schema"
)

type fakeSource struct {
	snap *schema.Snapshot
	err  error
	mu   sync.Mutex
	n    int
}

func (f *fakeSource) Snapshot(ctx context.Context) (*schema.Snapshot, error) {
	f.mu.Lock()
	f.n++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func tableX() *schema.Snapshot {
	return &schema.Snapshot{Tables: []schema.Table{
		{Name: "X", Columns: []schema.Column{{Name: "id", Type: "INTEGER", PrimaryKey: true}}},
	}}
}

// fakeGen scripts one response per attempt and records every request.
type fakeGen struct {
	mu       sync.Mutex
	requests []engine.Request
	outputs  []string
	errs     []error
	block    bool
}

func (f *fakeGen) Generate(ctx context.Context, req engine.Request) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.mu.Lock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.outputs) {
		return f.outputs[i], nil
	}
	return "", errors.New("no scripted output")
}

func (f *fakeGen) Decision(profileID string) (compute.Decision, bool) {
	return compute.Decision{Backend: compute.BackendCUDA, Precision: compute.PrecisionFloat16}, true
}

func (f *fakeGen) calls() []engine.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]engine.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func newOrch(gen Generator, src schema.Source) *Orchestrator {
	return New(gen, src, Config{Logger: zerolog.Nop()})
}

func TestConvertHappyPath(t *testing.T) {
	gen := &fakeGen{outputs: []string{"SELECT COUNT(*) FROM X;"}}
	o := newOrch(gen, &fakeSource{snap: tableX()})

	res, err := o.Convert(context.Background(), "count rows in table X", "coder")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM X;", res.SQL)
	assert.Empty(t, res.Corrections)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "cuda", res.Backend)
	assert.Equal(t, "float16", res.Precision)
	assert.NotEmpty(t, res.RequestID)

	calls := gen.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 1, calls[0].Attempt)
	assert.Contains(t, calls[0].SchemaContext, "Table X (id INTEGER PRIMARY KEY)")
	assert.Equal(t, "count rows in table X", calls[0].Question)
}

func TestConvertCorrectsTrailingProse(t *testing.T) {
	gen := &fakeGen{outputs: []string{"SELECT COUNT(*) FROM X This counts every row for you"}}
	o := newOrch(gen, &fakeSource{snap: tableX()})

	res, err := o.Convert(context.Background(), "count rows in table X", "coder")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM X", res.SQL)
	assert.Equal(t, []string{"stripped trailing text"}, res.Corrections)
	assert.Len(t, gen.calls(), 1, "a correctable output must not trigger a second generation")
}

func TestConvertInstabilityRetriesExactlyTwice(t *testing.T) {
	gen := &fakeGen{errs: []error{
		engine.ErrNumericInstability(1),
		engine.ErrNumericInstability(2),
	}}
	o := newOrch(gen, &fakeSource{snap: tableX()})

	_, err := o.Convert(context.Background(), "q", "coder")
	require.Error(t, err)
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailNumericInstability, f.Kind)

	calls := gen.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 1, calls[0].Attempt)
	assert.Equal(t, 2, calls[1].Attempt)
}

func TestConvertRecoversOnSecondAttempt(t *testing.T) {
	gen := &fakeGen{
		errs:    []error{engine.ErrNumericInstability(1), nil},
		outputs: []string{"", "SELECT id FROM X;"},
	}
	o := newOrch(gen, &fakeSource{snap: tableX()})

	res, err := o.Convert(context.Background(), "q", "coder")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM X;", res.SQL)
	assert.Equal(t, 2, res.Attempts)
}

func TestConvertContextUnavailableSkipsModel(t *testing.T) {
	gen := &fakeGen{}
	o := newOrch(gen, &fakeSource{err: errors.New("connection refused")})

	_, err := o.Convert(context.Background(), "q", "coder")
	require.Error(t, err)
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailContextUnavailable, f.Kind)
	assert.Empty(t, gen.calls(), "no model load or generation may happen without schema context")
}

func TestConvertUnparseableDoesNotRetry(t *testing.T) {
	gen := &fakeGen{outputs: []string{"I cannot help with that."}}
	o := newOrch(gen, &fakeSource{snap: tableX()})

	_, err := o.Convert(context.Background(), "q", "coder")
	require.Error(t, err)
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailUnparseable, f.Kind)
	assert.Len(t, gen.calls(), 1)
}

func TestConvertModelUnavailable(t *testing.T) {
	gen := &fakeGen{errs: []error{engine.ErrResourceExhausted("coder", errors.New("no backend fits"))}}
	o := newOrch(gen, &fakeSource{snap: tableX()})

	_, err := o.Convert(context.Background(), "q", "coder")
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailModelUnavailable, f.Kind)
}

func TestConvertTimeout(t *testing.T) {
	gen := &fakeGen{block: true}
	o := New(gen, &fakeSource{snap: tableX()}, Config{
		Timeout: 20 * time.Millisecond,
		Logger:  zerolog.Nop(),
	})

	start := time.Now()
	_, err := o.Convert(context.Background(), "q", "coder")
	require.Error(t, err)
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailTimeout, f.Kind)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestConvertCallerCancellationIsNotAFailure(t *testing.T) {
	gen := &fakeGen{block: true}
	o := newOrch(gen, &fakeSource{snap: tableX()})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := o.Convert(ctx, "q", "coder")
	require.Error(t, err)
	_, ok := AsFailure(err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailureStatusCodes(t *testing.T) {
	cases := map[FailureKind]int{
		FailContextUnavailable: 502,
		FailModelUnavailable:   503,
		FailNumericInstability: 502,
		FailUnparseable:        422,
		FailTimeout:            504,
	}
	for kind, want := range cases {
		f := failf(kind, nil, "x")
		assert.Equal(t, want, f.StatusCode(), string(kind))
	}
}

func TestConvertPassesBackpressureThrough(t *testing.T) {
	gen := &fakeGen{errs: []error{engine.ErrTooBusy("coder")}}
	o := newOrch(gen, &fakeSource{snap: tableX()})

	_, err := o.Convert(context.Background(), "count rows in table X", "coder")
	require.Error(t, err)
	assert.True(t, engine.IsTooBusy(err), "backpressure must keep its identity, got %v", err)
	_, isFailure := AsFailure(err)
	assert.False(t, isFailure, "backpressure is not a pipeline failure")
	sc, ok := err.(interface{ StatusCode() int })
	require.True(t, ok, "backpressure must carry its HTTP mapping")
	assert.Equal(t, 429, sc.StatusCode())
	assert.Len(t, gen.calls(), 1, "a full queue must not be retried")
}
