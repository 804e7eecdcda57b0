package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/five82/crossbar/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.StringP("config", "c", "", "config file path (default ~/.config/crossbar/config.toml)")
	prefsPath := flag.String("prefs", "", "preferences file path (default ~/.config/crossbar/prefs.toml)")
	pollSeconds := flag.Int("poll", 0, "poll interval in seconds (default from config, 30s)")
	headless := flag.Bool("headless", false, "run without the TUI, logging to stderr")
	check := flag.Bool("check", false, "log in, read the routing table once and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath:  *configPath,
		PrefsPath:   *prefsPath,
		PollSeconds: *pollSeconds,
		Headless:    *headless,
		Check:       *check,
	}
	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "crossbar: %v\n", err)
		return 1
	}
	return 0
}
