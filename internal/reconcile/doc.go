// Package reconcile keeps a local copy of the matrix routing state in step
// with the device.
//
// # Overview
//
// A Coordinator owns the device session (a matrix.Controller) and the
// state.Store. It refreshes the store once when started and then on a fixed
// interval (DefaultPollInterval, 30 seconds). Route changes go through
// SetOutputInput, which validates the pair, sends the switch and, when the
// device accepts it, reads the device back so the store reflects what the
// hardware actually did rather than what was requested.
//
// # Serialization
//
// Every device request sequence runs under one lock, so polls, manual
// refreshes and switches never overlap on the wire. Concurrent refreshes
// that arrive while one is already waiting share its result through a
// singleflight group. The read that follows a switch never joins a refresh
// that started before the switch.
//
// # Availability
//
// The store starts Uninitialized. A successful read makes it Fresh; a failed
// read after that makes it Stale and keeps the last good routes. A failure
// before the first success leaves it Uninitialized and records the error.
//
// # Sinks
//
// Sinks (the MQTT bridge, tests) receive every stored snapshot in order.
// They run outside the device lock but must not call back into the
// Coordinator.
//
// # Shutdown
//
// Shutdown stops the timer, abandons any in-flight read without touching the
// store, waits for the loop to exit and then closes the device session. Every
// call made afterwards returns ErrShutdown.
//
//	c := reconcile.NewCoordinator(client, &state.Store{}, reconcile.CoordinatorOptions{})
//	if err := c.Start(ctx); err != nil {
//		return err
//	}
//	defer c.Shutdown()
//	err := c.SetOutputInput(ctx, 2, 5)
package reconcile
