// Package mqtt bridges the matrix to an MQTT broker using
// github.com/eclipse/paho.mqtt.golang.
//
// # Topics
//
// With the default prefix "crossbar":
//
//	crossbar/availability        online | offline (retained, also the Last Will)
//	crossbar/state               JSON state.Document (retained)
//	crossbar/output/<n>/input    input currently feeding output n (retained)
//	crossbar/output/<n>/set      command: payload is the input number
//	crossbar/refresh             command: read the device now
//
// # Publishing
//
// Bridge implements reconcile.Sink. SnapshotChanged never blocks: it parks the
// snapshot in a one-slot queue, replacing any older one, and a background
// goroutine publishes it. Per-output topics are only written once the routes
// are known.
//
// # Commands
//
// Commands are handled concurrently (paho's OrderMatters is off) because a
// switch waits for the device and a verification read. Invalid topics and
// payloads are logged and dropped.
//
// # Reconnects
//
// The session is clean, so every (re)connect re-announces availability,
// re-subscribes and republishes the current snapshot.
package mqtt
