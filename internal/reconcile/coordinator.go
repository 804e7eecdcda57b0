package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/five82/crossbar/internal/matrix"
	"github.com/five82/crossbar/internal/state"
)

// DefaultPollInterval is the refresh cadence when none is configured.
const DefaultPollInterval = 30 * time.Second

const refreshKey = "status"

var (
	// ErrShutdown is returned by operations started after Shutdown.
	ErrShutdown = errors.New("coordinator shut down")
	// ErrRouteRejected means the device answered a switch with result != 1.
	ErrRouteRejected = errors.New("device rejected route")
)

// Sink receives every snapshot the coordinator stores, successful or not.
// Implementations must not block for long or call back into the coordinator;
// they run on the refresh path.
type Sink interface {
	SnapshotChanged(snap state.Snapshot)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(snap state.Snapshot)

// SnapshotChanged implements Sink.
func (f SinkFunc) SnapshotChanged(snap state.Snapshot) { f(snap) }

// CoordinatorOptions configure a Coordinator.
type CoordinatorOptions struct {
	Interval time.Duration // zero uses DefaultPollInterval
	Inputs   int           // zero uses matrix.DefaultPorts
	Outputs  int           // zero uses matrix.DefaultPorts
	Sinks    []Sink
}

// Coordinator owns the device session and the snapshot store. It polls on a
// fixed interval, applies route changes and re-reads the device after every
// accepted change. All device traffic goes through one lock so at most one
// request sequence is in flight.
type Coordinator struct {
	device   matrix.Controller
	store    *state.Store
	interval time.Duration
	inputs   int
	outputs  int

	sinkMu       sync.Mutex
	sinks        []Sink
	lastNotified time.Time

	io      sync.Mutex
	flights singleflight.Group

	// base is cancelled by Shutdown and parents every device request.
	base       context.Context
	cancelBase context.CancelFunc

	mu         sync.Mutex
	started    bool
	closed     bool
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// NewCoordinator wires a coordinator around device. A nil store gets a fresh one.
func NewCoordinator(device matrix.Controller, store *state.Store, opts CoordinatorOptions) *Coordinator {
	if store == nil {
		store = &state.Store{}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	inputs, outputs := opts.Inputs, opts.Outputs
	if inputs <= 0 {
		inputs = matrix.DefaultPorts
	}
	if outputs <= 0 {
		outputs = matrix.DefaultPorts
	}
	base, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		device:     device,
		store:      store,
		interval:   interval,
		inputs:     inputs,
		outputs:    outputs,
		sinks:      append([]Sink(nil), opts.Sinks...),
		base:       base,
		cancelBase: cancel,
	}
}

// Store returns the snapshot store the coordinator writes to.
func (c *Coordinator) Store() *state.Store { return c.store }

// Snapshot returns the last stored snapshot without blocking on the device.
func (c *Coordinator) Snapshot() state.Snapshot { return c.store.Snapshot() }

// Inputs returns the configured input count.
func (c *Coordinator) Inputs() int { return c.inputs }

// Outputs returns the configured output count.
func (c *Coordinator) Outputs() int { return c.outputs }

// Interval returns the polling cadence.
func (c *Coordinator) Interval() time.Duration { return c.interval }

// AddSink registers a sink for subsequent snapshots.
func (c *Coordinator) AddSink(s Sink) {
	if s == nil {
		return
	}
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Start launches the polling goroutine. The first refresh runs immediately.
// The loop stops when ctx is cancelled or Shutdown is called.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrShutdown
	}
	if c.started {
		return fmt.Errorf("coordinator already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.started = true
	c.cancelLoop = cancel
	c.loopDone = make(chan struct{})

	go c.loop(loopCtx, c.loopDone)
	return nil
}

func (c *Coordinator) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Refresh(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, ErrShutdown) {
			log.Warn().Err(err).Msg("matrix poll failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh fetches the device status now. Calls that overlap an in-flight
// fetch share its result instead of issuing another request.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if c.isClosed() {
		return ErrShutdown
	}
	return c.refresh(ctx, false)
}

// SetOutputInput routes input to output. Out-of-range ports fail with a
// matrix.ValidationError and no device traffic. After an accepted switch the
// status is re-read immediately; a failure of that read is logged and
// recorded in the store but does not fail the call.
func (c *Coordinator) SetOutputInput(ctx context.Context, output, input int) error {
	if err := matrix.ValidateRoute(output, input, c.outputs, c.inputs); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrShutdown
	}

	ok, err := c.setRoute(ctx, output, input)
	if err != nil {
		return fmt.Errorf("set output %d to input %d: %w", output, input, err)
	}
	if !ok {
		return fmt.Errorf("%w: output %d input %d", ErrRouteRejected, output, input)
	}

	log.Debug().Int("output", output).Int("input", input).Msg("route accepted, refreshing")
	if err := c.refresh(ctx, true); err != nil && !errors.Is(err, ErrShutdown) {
		log.Warn().Err(err).Int("output", output).Msg("refresh after route change failed")
	}
	return nil
}

// Shutdown stops the polling loop, waits for it to exit and then releases
// the device session. Requests in flight are cancelled. Calls after the
// first are no-ops.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancelLoop != nil {
		c.cancelLoop()
	}
	done := c.loopDone
	c.mu.Unlock()

	c.cancelBase()
	if done != nil {
		<-done
	}

	c.io.Lock()
	c.device.Close()
	c.io.Unlock()
	log.Debug().Msg("coordinator shut down")
}

// refresh funnels a fetch through the single-flight group. With after set,
// any fetch already in flight is not joined: the caller needs a read that
// starts after its own write.
func (c *Coordinator) refresh(ctx context.Context, after bool) error {
	if after {
		c.flights.Forget(refreshKey)
	}
	ch := c.flights.DoChan(refreshKey, func() (any, error) {
		return nil, c.fetch()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) fetch() error {
	snap, err := c.fetchLocked()
	if snap != nil {
		c.notify(*snap)
	}
	return err
}

func (c *Coordinator) fetchLocked() (*state.Snapshot, error) {
	c.io.Lock()
	defer c.io.Unlock()

	if c.isClosed() {
		return nil, ErrShutdown
	}
	status, err := c.device.FetchStatus(c.base)
	if c.base.Err() != nil {
		return nil, ErrShutdown
	}
	snap := c.store.Update(status, err)
	return &snap, err
}

func (c *Coordinator) setRoute(ctx context.Context, output, input int) (bool, error) {
	c.io.Lock()
	defer c.io.Unlock()

	if c.isClosed() {
		return false, ErrShutdown
	}
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.base, cancel)
	defer stop()

	return c.device.SetRoute(reqCtx, output, input)
}

// notify delivers snap to every sink in update order. A snapshot older than
// one already delivered is dropped.
func (c *Coordinator) notify(snap state.Snapshot) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()

	if snap.LastUpdated.Before(c.lastNotified) {
		return
	}
	c.lastNotified = snap.LastUpdated
	for _, s := range c.sinks {
		s.SnapshotChanged(snap)
	}
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
