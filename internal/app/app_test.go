package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func restoreLogger(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestRun_RejectsConfigWithoutHost(t *testing.T) {
	path := writeConfig(t, "[device]\ninputs = 8\n")
	err := Run(context.Background(), Options{ConfigPath: path, Headless: true})
	if err == nil || !strings.Contains(err.Error(), "device.host is required") {
		t.Fatalf("Run error = %v", err)
	}
}

func TestRun_HeadlessPollsUntilCancelled(t *testing.T) {
	restoreLogger(t)

	var statusCalls atomic.Int32
	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body["comhead"] {
		case "login":
			_, _ = w.Write([]byte(`{"comhead":"login","result":1}`))
		case "get video status":
			statusCalls.Add(1)
			_, _ = w.Write([]byte(`{"comhead":"get video status","power":1,"allsource":[1,2,3,4,5,6,7,8,0]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer device.Close()

	path := writeConfig(t, fmt.Sprintf("[device]\nhost = %q\npoll_seconds = 60\n\n[log]\nlevel = \"error\"\nfile = %q\n",
		device.URL, filepath.Join(t.TempDir(), "crossbar.log")))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Options{ConfigPath: path, Headless: true})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for statusCalls.Load() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("device was never polled")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func fakeDevice(t *testing.T, loginResult int, statusCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body["comhead"] {
		case "login":
			fmt.Fprintf(w, `{"comhead":"login","result":%d}`, loginResult)
		case "get video status":
			statusCalls.Add(1)
			_, _ = w.Write([]byte(`{"comhead":"get video status","power":1,"allsource":[1,2,3,4,5,6,7,8,0]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(device.Close)
	return device
}

func TestRun_CheckReadsStatusOnce(t *testing.T) {
	restoreLogger(t)

	var statusCalls atomic.Int32
	device := fakeDevice(t, 1, &statusCalls)
	path := writeConfig(t, fmt.Sprintf("[device]\nhost = %q\n\n[log]\nlevel = \"error\"\n", device.URL))

	if err := Run(context.Background(), Options{ConfigPath: path, Check: true}); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := statusCalls.Load(); got != 1 {
		t.Fatalf("status calls = %d, want 1", got)
	}
}

func TestRun_CheckFailsWhenLoginRejected(t *testing.T) {
	restoreLogger(t)

	var statusCalls atomic.Int32
	device := fakeDevice(t, 0, &statusCalls)
	path := writeConfig(t, fmt.Sprintf("[device]\nhost = %q\n\n[log]\nlevel = \"error\"\n", device.URL))

	err := Run(context.Background(), Options{ConfigPath: path, Check: true})
	if !errors.Is(err, ErrLoginRejected) {
		t.Fatalf("Run error = %v, want ErrLoginRejected", err)
	}
	if got := statusCalls.Load(); got != 0 {
		t.Fatalf("status calls = %d, want 0", got)
	}
}

func TestRun_CheckFailsWhenDeviceUnreachable(t *testing.T) {
	restoreLogger(t)

	device := httptest.NewServer(http.NotFoundHandler())
	host := device.URL
	device.Close()
	path := writeConfig(t, fmt.Sprintf("[device]\nhost = %q\ntimeout_seconds = 1\n\n[log]\nlevel = \"error\"\n", host))

	err := Run(context.Background(), Options{ConfigPath: path, Check: true})
	if err == nil || !strings.Contains(err.Error(), "cannot connect") {
		t.Fatalf("Run error = %v, want connection error", err)
	}
}
