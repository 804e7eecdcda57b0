package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}
	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{"zero", 0, nil},
		{"negative", -1, nil},
		{"read partial (5)", 5, expectedAll[5:]},
		{"read exactly all (10)", 10, expectedAll},
		{"read more than exists (20)", 20, expectedAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Fatalf("Read(%d) = %q, want %q", tt.maxLines, got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read = %q, %v; want nil, nil", got, err)
	}
}

func TestParseAndFormat(t *testing.T) {
	line := `{"level":"warn","output":2,"error":"timeout","time":"2026-10-19T08:30:00Z","message":"matrix poll failed"}`
	e := Parse(line)
	if e.Level != "warn" || e.Message != "matrix poll failed" {
		t.Fatalf("entry = %+v", e)
	}
	if !e.Time.Equal(time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("Time = %v", e.Time)
	}
	if e.Fields["output"] != "2" || e.Fields["error"] != "timeout" {
		t.Fatalf("Fields = %v", e.Fields)
	}

	got := e.Format()
	want := e.Time.Local().Format("15:04:05") + " WRN matrix poll failed error=timeout output=2"
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestParse_NonJSON(t *testing.T) {
	e := Parse("plain text line")
	if e.Raw != "plain text line" || e.Format() != "plain text line" {
		t.Fatalf("entry = %+v", e)
	}
}

func TestReadEntries_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crossbar.log")
	data := `{"level":"info","message":"one"}` + "\n\n" + `{"level":"error","message":"two"}` + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, err := ReadEntries(path, 10)
	if err != nil {
		t.Fatalf("ReadEntries returned error: %v", err)
	}
	if len(entries) != 2 || entries[0].Message != "one" || LevelTag(entries[1].Level) != "ERR" {
		t.Fatalf("entries = %+v", entries)
	}
}
