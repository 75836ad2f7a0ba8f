package httpapi

import (
	"context"
	"testing"
	"time"
)

func TestSetBaseContextNilRestoresBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SetBaseContext(ctx)
	// nolint:staticcheck // SA1012: nil is the documented reset value.
	SetBaseContext(nil)
	if serverBaseCtx.Done() != nil {
		t.Fatal("expected base context reset to Background")
	}
}

func TestJoinContextsCancelsWhenEitherDone(t *testing.T) {
	for name, pick := range map[string]int{"first": 0, "second": 1} {
		t.Run(name, func(t *testing.T) {
			parents := make([]context.Context, 2)
			cancels := make([]context.CancelFunc, 2)
			for i := range parents {
				parents[i], cancels[i] = context.WithCancel(context.Background())
				defer cancels[i]()
			}
			j, cancelJ := joinContexts(parents[0], parents[1])
			defer cancelJ()
			cancels[pick]()
			select {
			case <-j.Done():
			case <-time.After(500 * time.Millisecond):
				t.Fatal("joined context not canceled after parent canceled")
			}
		})
	}
}
