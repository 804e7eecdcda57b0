package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/crossbar/internal/matrix"
	"github.com/five82/crossbar/internal/state"
)

// fakeMatrix is an in-memory matrix that counts calls and tracks overlap.
type fakeMatrix struct {
	mu        sync.Mutex
	routes    []int
	fetches   int
	switches  int
	closes    int
	fetchErrs []error // consumed one per fetch; nil entries succeed
	switchOK  bool
	switchErr error
	delay     time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeMatrix() *fakeMatrix {
	return &fakeMatrix{routes: []int{7, 6, 2, 4, 2, 2, 2, 2}, switchOK: true}
}

func (f *fakeMatrix) enter() func() {
	n := f.inFlight.Add(1)
	for {
		max := f.maxInFlight.Load()
		if n <= max || f.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeMatrix) FetchStatus(ctx context.Context) (*matrix.Status, error) {
	defer f.enter()()
	f.mu.Lock()
	f.fetches++
	var err error
	if len(f.fetchErrs) > 0 {
		err = f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
	}
	routes := append([]int(nil), f.routes...)
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &matrix.Status{Power: 1, Routes: routes}, nil
}

func (f *fakeMatrix) SetRoute(ctx context.Context, output, input int) (bool, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switches++
	if f.switchErr != nil {
		return false, f.switchErr
	}
	if f.switchOK {
		f.routes[output-1] = input
	}
	return f.switchOK, nil
}

func (f *fakeMatrix) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeMatrix) counts() (fetches, switches, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, f.switches, f.closes
}

func newTestCoordinator(t *testing.T, dev *fakeMatrix, interval time.Duration) *Coordinator {
	t.Helper()
	c := NewCoordinator(dev, nil, CoordinatorOptions{Interval: interval})
	t.Cleanup(c.Shutdown)
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCoordinator_SetOutputInputSwitchesThenRefreshesOnce(t *testing.T) {
	for output := 1; output <= 8; output++ {
		for input := 1; input <= 8; input++ {
			dev := newFakeMatrix()
			c := newTestCoordinator(t, dev, time.Hour)

			if err := c.SetOutputInput(context.Background(), output, input); err != nil {
				t.Fatalf("SetOutputInput(%d, %d) returned error: %v", output, input, err)
			}
			fetches, switches, _ := dev.counts()
			if switches != 1 || fetches != 1 {
				t.Fatalf("SetOutputInput(%d, %d): switches=%d fetches=%d, want 1/1", output, input, switches, fetches)
			}
			snap := c.Snapshot()
			if snap.Availability != state.Fresh || snap.Status.Routes[output-1] != input {
				t.Fatalf("snapshot after (%d, %d) = %v %v", output, input, snap.Availability, snap.Status.Routes)
			}
		}
	}
}

func TestCoordinator_SetOutputInputOutOfRange(t *testing.T) {
	dev := newFakeMatrix()
	c := newTestCoordinator(t, dev, time.Hour)

	cases := [][2]int{{0, 1}, {9, 1}, {1, 0}, {1, 9}, {-3, 4}, {100, 100}}
	for _, tc := range cases {
		err := c.SetOutputInput(context.Background(), tc[0], tc[1])
		if !errors.Is(err, matrix.ErrOutOfRange) {
			t.Fatalf("SetOutputInput(%d, %d) error = %v, want ErrOutOfRange", tc[0], tc[1], err)
		}
		var ve *matrix.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("error = %T, want *matrix.ValidationError", err)
		}
	}
	if fetches, switches, _ := dev.counts(); fetches != 0 || switches != 0 {
		t.Fatalf("device calls = %d fetches, %d switches, want none", fetches, switches)
	}
}

func TestCoordinator_SetOutputInputRejectedSkipsRefresh(t *testing.T) {
	dev := newFakeMatrix()
	dev.switchOK = false
	c := newTestCoordinator(t, dev, time.Hour)

	err := c.SetOutputInput(context.Background(), 1, 3)
	if !errors.Is(err, ErrRouteRejected) {
		t.Fatalf("error = %v, want ErrRouteRejected", err)
	}
	if fetches, switches, _ := dev.counts(); fetches != 0 || switches != 1 {
		t.Fatalf("fetches=%d switches=%d, want 0/1", fetches, switches)
	}
}

func TestCoordinator_SetOutputInputTransportErrorKeepsSnapshot(t *testing.T) {
	dev := newFakeMatrix()
	c := newTestCoordinator(t, dev, time.Hour)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	before := c.Snapshot()

	dev.mu.Lock()
	dev.switchErr = &matrix.TransportError{Command: "video switch", Kind: matrix.KindNetwork, Err: errors.New("refused")}
	dev.mu.Unlock()

	err := c.SetOutputInput(context.Background(), 2, 5)
	if !matrix.IsTransport(err) {
		t.Fatalf("error = %v, want transport error", err)
	}
	after := c.Snapshot()
	if after.Generation != before.Generation || after.Availability != state.Fresh {
		t.Fatalf("snapshot changed after failed switch: %+v", after)
	}
	if fetches, _, _ := dev.counts(); fetches != 1 {
		t.Fatalf("fetches = %d, want 1", fetches)
	}
}

func TestCoordinator_PollFailureKeepsSnapshotAndLoopSurvives(t *testing.T) {
	dev := newFakeMatrix()
	boom := errors.New("boom")
	// success, two failures, then success again
	dev.fetchErrs = []error{nil, boom, boom}

	var mu sync.Mutex
	var seen []state.Availability
	c := NewCoordinator(dev, nil, CoordinatorOptions{
		Interval: 10 * time.Millisecond,
		Sinks: []Sink{SinkFunc(func(s state.Snapshot) {
			mu.Lock()
			seen = append(seen, s.Availability)
			mu.Unlock()
		})},
	})
	t.Cleanup(c.Shutdown)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitFor(t, "recovery after failures", func() bool {
		fetches, _, _ := dev.counts()
		return fetches >= 4 && c.Snapshot().Availability == state.Fresh
	})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 4 {
		t.Fatalf("sink saw %v, want at least 4 snapshots", seen)
	}
	want := []state.Availability{state.Fresh, state.Stale, state.Stale, state.Fresh}
	for i, a := range want {
		if seen[i] != a {
			t.Fatalf("sink saw %v, want prefix %v", seen, want)
		}
	}
}

func TestCoordinator_StaleKeepsLastGoodStatus(t *testing.T) {
	dev := newFakeMatrix()
	c := newTestCoordinator(t, dev, time.Hour)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	dev.mu.Lock()
	dev.fetchErrs = []error{errors.New("timeout")}
	dev.mu.Unlock()

	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh returned nil error, want failure")
	}
	snap := c.Snapshot()
	if snap.Availability != state.Stale {
		t.Fatalf("Availability = %v, want stale", snap.Availability)
	}
	if len(snap.Status.Routes) != 8 || snap.Status.Routes[0] != 7 {
		t.Fatalf("Routes = %v, want last good routes", snap.Status.Routes)
	}
}

func TestCoordinator_ConcurrentTriggersNeverOverlap(t *testing.T) {
	dev := newFakeMatrix()
	dev.delay = 5 * time.Millisecond
	c := newTestCoordinator(t, dev, 2*time.Millisecond)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Refresh(context.Background())
		}()
		go func(out int) {
			defer wg.Done()
			_ = c.SetOutputInput(context.Background(), out, 1)
		}(i + 1)
	}
	wg.Wait()

	if max := dev.maxInFlight.Load(); max != 1 {
		t.Fatalf("max concurrent device calls = %d, want 1", max)
	}
}

func TestCoordinator_RefreshCoalescesConcurrentCallers(t *testing.T) {
	dev := newFakeMatrix()
	dev.delay = 50 * time.Millisecond
	c := newTestCoordinator(t, dev, time.Hour)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if err := c.Refresh(context.Background()); err != nil {
				t.Errorf("Refresh returned error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if fetches, _, _ := dev.counts(); fetches >= 5 {
		t.Fatalf("fetches = %d, want concurrent callers coalesced", fetches)
	}
}

func TestCoordinator_ShutdownStopsPollingAndReleasesSession(t *testing.T) {
	dev := newFakeMatrix()
	c := NewCoordinator(dev, nil, CoordinatorOptions{Interval: 5 * time.Millisecond})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitFor(t, "a few polls", func() bool {
		fetches, _, _ := dev.counts()
		return fetches >= 2
	})

	c.Shutdown()
	c.Shutdown()

	fetches, _, closes := dev.counts()
	if closes != 1 {
		t.Fatalf("closes = %d, want 1", closes)
	}
	time.Sleep(30 * time.Millisecond)
	if after, _, _ := dev.counts(); after != fetches {
		t.Fatalf("fetches grew after shutdown: %d -> %d", fetches, after)
	}

	if err := c.Refresh(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Fatalf("Refresh after shutdown = %v, want ErrShutdown", err)
	}
	if err := c.SetOutputInput(context.Background(), 1, 1); !errors.Is(err, ErrShutdown) {
		t.Fatalf("SetOutputInput after shutdown = %v, want ErrShutdown", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Fatalf("Start after shutdown = %v, want ErrShutdown", err)
	}
}

func TestCoordinator_ShutdownAbandonsInFlightFetch(t *testing.T) {
	dev := newFakeMatrix()
	dev.delay = time.Hour
	c := NewCoordinator(dev, nil, CoordinatorOptions{Interval: time.Hour})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitFor(t, "fetch in flight", func() bool { return dev.inFlight.Load() == 1 })

	done := make(chan struct{})
	go func() {
		c.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown blocked on in-flight fetch")
	}
	if snap := c.Snapshot(); snap.Availability != state.Uninitialized || snap.LastError != nil {
		t.Fatalf("abandoned fetch should not touch the store: %+v", snap)
	}
}

func TestCoordinator_StartTwice(t *testing.T) {
	c := newTestCoordinator(t, newFakeMatrix(), time.Hour)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("second Start returned nil error")
	}
}
