package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/five82/crossbar/internal/api"
	"github.com/five82/crossbar/internal/config"
	"github.com/five82/crossbar/internal/logging"
	"github.com/five82/crossbar/internal/matrix"
	"github.com/five82/crossbar/internal/mqtt"
	"github.com/five82/crossbar/internal/prefs"
	"github.com/five82/crossbar/internal/reconcile"
	"github.com/five82/crossbar/internal/state"
	"github.com/five82/crossbar/internal/ui"
)

const shutdownTimeout = 5 * time.Second

// ErrLoginRejected is returned by a connection check when the device refuses
// the configured credentials.
var ErrLoginRejected = errors.New("matrix rejected login")

// Options configure the crossbar process.
type Options struct {
	ConfigPath  string
	PrefsPath   string // empty uses ~/.config/crossbar/prefs.toml
	PollSeconds int    // zero uses the configured interval
	Headless    bool   // no TUI; log to stderr and run until ctx is done
	Check       bool   // log in and read status once, then exit
}

// Run boots crossbar and blocks until the TUI exits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.PollSeconds > 0 {
		cfg.Device.PollInterval = time.Duration(opts.PollSeconds) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mode := logging.File
	if opts.Headless || opts.Check {
		mode = logging.Console
	}
	closer, err := logging.Setup(cfg.Log, mode)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closer.Close()

	client, err := matrix.NewClient(matrix.Options{
		Host:     cfg.Device.Host,
		Username: cfg.Device.Username,
		Password: cfg.Device.Password,
		Inputs:   cfg.Device.Inputs,
		Outputs:  cfg.Device.Outputs,
		Timeout:  cfg.Device.Timeout,
	})
	if err != nil {
		return fmt.Errorf("init matrix client: %w", err)
	}
	if opts.Check {
		defer client.Close()
		return check(ctx, client, cfg.Device.Host)
	}

	coord := reconcile.NewCoordinator(client, &state.Store{}, reconcile.CoordinatorOptions{
		Interval: cfg.Device.PollInterval,
		Inputs:   cfg.Device.Inputs,
		Outputs:  cfg.Device.Outputs,
	})
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	// Deferred calls run in reverse: sinks and the API stop before the
	// coordinator releases the device session.
	defer coord.Shutdown()

	log.Info().
		Str("host", cfg.Device.Host).
		Int("inputs", cfg.Device.Inputs).
		Int("outputs", cfg.Device.Outputs).
		Dur("poll", cfg.Device.PollInterval).
		Msg("crossbar started")

	if cfg.API.Listen != "" {
		srv := api.NewServer(coord)
		if err := srv.Start(cfg.API.Listen); err != nil {
			return fmt.Errorf("start http api: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("http api shutdown")
			}
		}()
	}

	if cfg.MQTT.Broker != "" {
		bridge, err := mqtt.Connect(cfg.MQTT, coord)
		if err != nil {
			// The matrix is still usable without the broker.
			log.Error().Err(err).Str("broker", cfg.MQTT.Broker).Msg("mqtt bridge disabled")
		} else {
			coord.AddSink(bridge)
			defer func() {
				if err := bridge.Close(); err != nil {
					log.Warn().Err(err).Msg("mqtt bridge close")
				}
			}()
		}
	}

	if opts.Headless {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		return nil
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)
	err = ui.Run(ui.Options{
		Context:    ctx,
		Controller: coord,
		Ports:      cfg.Ports,
		Host:       cfg.Device.Host,
		LogFile:    cfg.Log.File,
		PollTick:   time.Second,
		Prefs:      userPrefs,
		PrefsPath:  opts.PrefsPath,
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// check logs in and reads the routing table once. A refused login fails the
// check even though a running crossbar would keep polling.
func check(ctx context.Context, client *matrix.Client, host string) error {
	ok, err := client.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("cannot connect to %s: %w", host, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", host, ErrLoginRejected)
	}
	status, err := client.FetchStatus(ctx)
	if err != nil {
		return fmt.Errorf("read status from %s: %w", host, err)
	}
	log.Info().
		Str("host", host).
		Int("power", status.Power).
		Ints("routes", status.Routes).
		Msg("matrix connection ok")
	return nil
}
