// Package matrix provides an HTTP client for HDMI matrix switchers that speak
// the JSON "instr" control protocol (OREI 8x8 and compatible units).
//
// # Overview
//
// The device exposes a single endpoint, POST /cgi-bin/instr, that accepts a
// JSON object whose comhead field names the command. Three commands are used:
//
//   - login: {"comhead":"login","user":U,"password":P} -> {"result":1|0}
//   - get video status: {"comhead":"get video status","language":0}
//   - video switch: {"comhead":"video switch","language":0,"source":[out,in]}
//
// The status reply carries allsource, an array with one entry per output plus
// a trailing sentinel, and parallel arrays of input, output and preset names.
//
// # Session Handling
//
// The device keeps an unauthenticated-by-default session and never signals
// expiry. The client keeps a single boolean flag, changed only by
// Authenticate. FetchStatus and SetRoute log in lazily, once, when the flag is
// false, and send their command whatever the login outcome was. A session the
// device has silently dropped is not detected while the flag is still true.
//
// # Client Usage
//
//	client, err := matrix.NewClient(matrix.Options{Host: "192.168.1.100"})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	status, err := client.FetchStatus(ctx)
//	if err != nil {
//		return err
//	}
//	ok, err := client.SetRoute(ctx, 1, 3) // output 1 <- input 3
//
// # Error Handling
//
//   - ValidationError (errors.Is ErrOutOfRange): port outside [1, N], no I/O
//   - TransportError: connection failure, timeout, non-200 status, non-JSON
//     body, or JSON missing required fields (KindProtocol)
//   - A reply with result != 1 is not an error; the call returns false
//
// No call retries. Retrying is left to the caller's next poll.
package matrix
