// Package ui provides the Bubble Tea terminal interface for crossbar.
//
// # Layout
//
// The screen has three parts:
//
//   - Header: host, an availability badge (CONNECTING, LIVE, STALE, OFFLINE),
//     power state, the time of the last successful sync and the current
//     failure streak.
//   - Routing grid: one row per visible output and one column per visible
//     input. The live route of each output is marked with a dot; the cursor
//     cell is highlighted. Routes are drawn in the warning color while the
//     snapshot is stale.
//   - Footer: the result of the last command and key hints.
//
// An optional log pane (L) shows the tail of crossbar's own log file, read
// through the logtail package.
//
// # Data Flow
//
// The model never talks to the device. It reads snapshots from a Controller
// (the app coordinator) on every tick and after every command, and issues
// routing requests through Controller.SetOutputInput in a tea.Cmd so the
// event loop never blocks on the network. The coordinator serializes device
// access, so pressing enter repeatedly only queues switches.
//
// # Names and Hidden Ports
//
// Port names resolve through config.PortsConfig: the configured name, then
// the label reported by the device, then "Input N" / "Output N". Ports listed
// as hidden are left out of the grid entirely.
//
// # Preferences
//
// The theme, the selected output and the log pane toggle are saved to the
// prefs file when the theme changes and on quit.
//
// # Key Bindings
//
//   - j/k or arrows: Select output
//   - h/l or arrows: Select input
//   - g: First output
//   - enter/space: Route the selected input to the selected output
//   - r: Refresh now
//   - L: Toggle log pane
//   - T: Cycle theme
//   - ?: Help
//   - q or Ctrl+C: Quit
package ui
