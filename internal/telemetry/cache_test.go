package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSource returns its queued results in order, repeating the last one.
type fakeSource struct {
	snapshots []Vehicle
	errs      []error
	calls     int
}

func (f *fakeSource) TelemetryGet(ctx context.Context) (Vehicle, error) {
	i := f.calls
	if i >= len(f.errs) {
		i = len(f.errs) - 1
	}
	f.calls++
	if f.errs[i] != nil {
		return Vehicle{}, f.errs[i]
	}
	return f.snapshots[i], nil
}

func TestLatestBeforeFirstPoll(t *testing.T) {
	c := NewCache(&fakeSource{snapshots: []Vehicle{{}}, errs: []error{nil}})
	if _, ok := c.Latest(); ok {
		t.Error("Latest reported a snapshot before any refresh")
	}
	if c.Staleness() != 0 {
		t.Errorf("Staleness = %d before any refresh, want 0", c.Staleness())
	}
}

func TestRefreshReplacesSnapshotWhole(t *testing.T) {
	first := Vehicle{Lat: 47.1, Lon: 8.5, AltM: 12, Battery: 0.9, Armed: true, Mode: "AUTO", Timestamp: time.Unix(100, 0)}
	second := Vehicle{Lat: 47.2, Lon: 8.6, AltM: 30, Battery: 0.8, Armed: true, Mode: "AUTO", Timestamp: time.Unix(101, 0)}
	src := &fakeSource{snapshots: []Vehicle{first, second}, errs: []error{nil, nil}}
	c := NewCache(src)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	got, ok := c.Latest()
	if !ok || got != first {
		t.Fatalf("Latest = %+v, %v; want first snapshot", got, ok)
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	got, _ = c.Latest()
	if got != second {
		t.Errorf("Latest = %+v, want second snapshot", got)
	}
}

func TestStalenessCounter(t *testing.T) {
	snap := Vehicle{Lat: 1, Lon: 2, Battery: 0.5}
	linkErr := errors.New("connection refused")
	src := &fakeSource{
		snapshots: []Vehicle{snap, {}, {}, snap, {}},
		errs:      []error{nil, linkErr, linkErr, nil, linkErr},
	}
	c := NewCache(src)

	steps := []struct {
		wantErr   bool
		wantStale int
	}{
		{false, 0},
		{true, 1},
		{true, 2},
		{false, 0}, // only a successful refresh resets the counter
		{true, 1},
	}
	for i, step := range steps {
		err := c.Refresh(context.Background())
		if (err != nil) != step.wantErr {
			t.Fatalf("step %d: err = %v, wantErr %v", i, err, step.wantErr)
		}
		if got := c.Staleness(); got != step.wantStale {
			t.Errorf("step %d: Staleness = %d, want %d", i, got, step.wantStale)
		}
	}

	// The stale snapshot is retained across failed refreshes.
	got, ok := c.Latest()
	if !ok || got != snap {
		t.Errorf("Latest after failures = %+v, %v; want retained snapshot", got, ok)
	}
}
