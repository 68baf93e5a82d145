package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeStaleResolver struct {
	resolved int
	err      error
	calls    []time.Time
}

func (f *fakeStaleResolver) AutoResolveStale(_ context.Context, now time.Time) (int, error) {
	f.calls = append(f.calls, now)
	return f.resolved, f.err
}

type fakePurger struct {
	purged int64
	before []time.Time
}

func (f *fakePurger) PurgeClosedAlerts(_ context.Context, before time.Time) (int64, error) {
	f.before = append(f.before, before)
	return f.purged, nil
}

func TestAutoResolver_RunOnce(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		resolver     *fakeStaleResolver
		purger       *fakePurger
		retention    time.Duration
		wantResolved int
		wantPurged   int64
		wantBefore   []time.Time
	}{
		{
			name:         "resolves and purges past retention",
			resolver:     &fakeStaleResolver{resolved: 3},
			purger:       &fakePurger{purged: 7},
			retention:    90 * 24 * time.Hour,
			wantResolved: 3,
			wantPurged:   7,
			wantBefore:   []time.Time{now.Add(-90 * 24 * time.Hour)},
		},
		{
			name:         "zero retention skips purge",
			resolver:     &fakeStaleResolver{resolved: 1},
			purger:       &fakePurger{purged: 7},
			wantResolved: 1,
		},
		{
			name:       "resolve failure still purges",
			resolver:   &fakeStaleResolver{err: errors.New("boom")},
			purger:     &fakePurger{purged: 2},
			retention:  time.Hour,
			wantPurged: 2,
			wantBefore: []time.Time{now.Add(-time.Hour)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ar := NewAutoResolver(tt.resolver, tt.purger, time.Minute, tt.retention, nil)
			ar.now = func() time.Time { return now }

			resolved, purged := ar.runOnce(context.Background())
			assert.Equal(t, tt.wantResolved, resolved)
			assert.Equal(t, tt.wantPurged, purged)
			assert.Equal(t, []time.Time{now}, tt.resolver.calls)
			assert.Equal(t, tt.wantBefore, tt.purger.before)
		})
	}
}

func TestAutoResolver_NilPurger(t *testing.T) {
	resolver := &fakeStaleResolver{resolved: 2}
	ar := NewAutoResolver(resolver, nil, time.Minute, time.Hour, nil)

	resolved, purged := ar.runOnce(context.Background())
	assert.Equal(t, 2, resolved)
	assert.Zero(t, purged)
}

func TestAutoResolver_StartRunsImmediatelyAndStops(t *testing.T) {
	resolver := &fakeStaleResolver{}
	ar := NewAutoResolver(resolver, nil, time.Hour, 0, nil)

	done := make(chan struct{})
	go func() {
		ar.Start()
		close(done)
	}()

	assert.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
		}
		ar.Stop()
		return false
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, resolver.calls, 1)

	// Stop is idempotent
	ar.Stop()
}
