// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/scriptdev/scriptdev/internal/observability"
	"github.com/scriptdev/scriptdev/pkg/errutil"
)

// runConfig holds configuration for the run command.
type runConfig struct {
	devices     []string
	metricsAddr string
	interval    time.Duration
	duration    time.Duration
}

// Default values for run command flags.
const (
	defaultMetricsAddr = "127.0.0.1:9100"
	defaultInterval    = time.Second
)

// Validate checks that the configuration is valid.
func (cfg *runConfig) Validate() error {
	if cfg.interval <= 0 {
		return oops.In("cli").With("interval", cfg.interval).Errorf("interval must be positive")
	}
	if cfg.duration < 0 {
		return oops.In("cli").With("duration", cfg.duration).Errorf("duration must not be negative")
	}
	return nil
}

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cfg := &runConfig{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the configured devices and serve metrics",
		Long: `Initialize the selected devices, then snap every camera and poll every
generic device once per interval until interrupted. Metrics and health
probes are served on --metrics-addr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDevices(cmd.Context(), cmd, cfg)
		},
	}

	cmd.Flags().StringSliceVar(&cfg.devices, "device", nil, "device name patterns (default: all)")
	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().DurationVar(&cfg.interval, "interval", defaultInterval, "time between device polls")
	cmd.Flags().DurationVar(&cfg.duration, "duration", 0, "stop after this long (0 = until interrupted)")

	return cmd
}

func runDevices(ctx context.Context, cmd *cobra.Command, cfg *runConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	set, err := openDevices(cmd, cfg.devices)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.duration)
		defer cancel()
	}

	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.metricsAddr != "" {
		obsServer = observability.NewServer(cfg.metricsAddr, set.ready)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.In("cli").Wrapf(err, "start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
	}

	defer func() {
		set.close(context.Background())
		if obsServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				slog.Warn("error stopping observability server", "error", err)
			}
		}
	}()

	failures := set.initialize(ctx)
	for name, err := range failures {
		errutil.LogError(slog.Default(), "device failed to initialize", err)
		observability.RecordDeviceFailure(name, "initialize")
	}
	if metrics != nil {
		metrics.DevicesInitialized.Set(float64(len(set.devices) - len(failures)))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	cmd.Println("Devices running")
	for {
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
			return nil
		case <-ctx.Done():
			slog.Info("stopping devices")
			return nil
		case <-ticker.C:
			pollDevices(ctx, set, metrics)
		}
	}
}

// pollDevices snaps every camera and reads the busy flag of every generic
// device once.
func pollDevices(ctx context.Context, set *deviceSet, metrics *observability.Metrics) {
	for _, cam := range set.cameras() {
		status := "ok"
		if err := cam.SnapImage(ctx); err != nil {
			status = "fault"
			observability.RecordDeviceFailure(cam.Name(), "snap")
		} else if metrics != nil {
			metrics.FrameBytes.WithLabelValues(cam.Name()).Observe(float64(len(cam.ImageBuffer())))
		}
		if metrics != nil {
			metrics.SnapsTotal.WithLabelValues(cam.Name(), status).Inc()
		}
	}
	for _, g := range set.generics() {
		busy, err := g.Busy()
		if err != nil {
			observability.RecordDeviceFailure(g.Name(), "busy")
			continue
		}
		slog.Debug("device polled", "device", g.Name(), "busy", busy)
	}
}

// monitorServerErrors cancels ctx when the server reports an error. It
// exits when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok || err == nil {
			return
		}
		slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
		cancel()
	case <-ctx.Done():
	}
}
