package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"crewcall-sim/internal/admin"
	"crewcall-sim/internal/dashboard"
	"crewcall-sim/internal/device"
	"crewcall-sim/internal/fleet"
	"crewcall-sim/internal/metrics"
)

var (
	flagTUI       bool
	flagAdminAddr string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the configured device fleet until interrupted",
	Long:  "start launches every device group from the config file, serves the control surface, and keeps publishing until SIGINT or SIGTERM.",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVar(&flagTUI, "tui", false, "Render a terminal dashboard instead of plain log output")
	startCmd.Flags().StringVar(&flagAdminAddr, "admin-addr", "", "Control surface listen address, overrides the config file")
}

func runStart(cmd *cobra.Command, _ []string) error {
	r, err := buildRuntime()
	if err != nil {
		return err
	}
	defer r.cleanup()

	// Cancelled by Execute on SIGINT/SIGTERM.
	ctx := cmd.Context()

	var tui *dashboard.TUI
	if flagTUI {
		tui = dashboard.NewTUI()
		defer tui.Close()
		sink := fleet.NewMultiSink(r.eventSink, tui)
		r.orchestrator.SetEventSink(sink)
		r.registry.SetEventSink(sink)
	}

	if r.collector != nil {
		if tui != nil {
			r.collector.OnAlert(tui.Alert)
		} else {
			r.collector.OnAlert(func(a metrics.Alert) {
				r.log.Warn("threshold alert",
					"category", a.Category, "severity", a.Severity,
					"value", a.Value, "threshold", a.Threshold)
			})
		}
		go r.collector.Run(ctx)
	}

	specs, err := specsFromGroups(r.cfg.Fleet.Groups)
	if err != nil {
		return err
	}
	started := r.orchestrator.StartSimulators(ctx, specs)
	r.log.Info("fleet started", "devices", len(started), "broker", r.cfg.Broker.URL)

	adminAddr := r.cfg.AdminAddr
	if flagAdminAddr != "" {
		adminAddr = flagAdminAddr
	}
	if adminAddr != "" {
		srv := admin.NewServer(r.registry, r.orchestrator, r.collector, r.log)
		go func() {
			if err := srv.Start(adminAddr); err != nil {
				r.log.Error("control surface stopped", "err", err)
			}
		}()
		r.log.Info("control surface listening", "addr", adminAddr)
	}

	go feedStats(ctx, r, tui)

	<-ctx.Done()
	r.log.Info("shutting down")

	r.orchestrator.StopAll(context.Background())
	r.registry.RemoveAll()
	return nil
}

// feedStats periodically pushes fleet aggregates into the collector and
// the terminal dashboard.
func feedStats(ctx context.Context, r *runtime, tui *dashboard.TUI) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			orch := r.orchestrator.GetStatistics()
			reg := r.registry.Stats()
			if r.collector != nil {
				r.collector.UpdateDeviceStats(metrics.DeviceStats{
					Active:       orch.Total + reg.Total,
					Connected:    orch.ByState[device.StateRunning] + reg.Online,
					Disconnected: orch.ByState[device.StateStopped] + (reg.Total - reg.Online),
					Errors:       orch.ByState[device.StateError],
				})
			}
			if tui != nil {
				tui.UpdateStats(r.registry.List(), reg)
			}
		}
	}
}
