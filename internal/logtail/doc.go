// Package logtail reads the tail of crossbar's own log file for display in
// the TUI.
//
// While the TUI owns the terminal, crossbar logs JSON lines (zerolog) to a
// file instead of stderr. The log pane reads the last few hundred lines with
// Read, which keeps a ring buffer so memory stays proportional to the number
// of lines requested rather than the file size, and renders them with
// Parse and Entry.Format:
//
//	entries, err := logtail.ReadEntries(cfg.Log.File, 200)
//	for _, e := range entries {
//		fmt.Println(e.Format()) // 08:30:00 WRN matrix poll failed error=timeout
//	}
//
// Lines that are not JSON are passed through unchanged.
package logtail
