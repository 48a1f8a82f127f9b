package main

import (
	"log/slog"
	"time"

	"crewcall-sim/internal/config"
	"crewcall-sim/internal/device"
	"crewcall-sim/internal/fleet"
	"crewcall-sim/internal/logging"
	"crewcall-sim/internal/metrics"
	"crewcall-sim/internal/transport"
)

// runtime bundles the pieces every subcommand needs: config, transport,
// collector, orchestrator, and the cleanup chain.
type runtime struct {
	cfg          *config.SimulationConfig
	log          *slog.Logger
	client       transport.Client
	topics       transport.Topics
	collector    *metrics.Collector
	orchestrator *fleet.Orchestrator
	registry     *fleet.Registry
	eventSink    device.EventSink
	cleanups     []func()
}

func (r *runtime) cleanup() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
}

// buildRuntime loads config and wires the shared stack based on the
// persistent flags.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(flagConfigPath, flagSchemaPath)
	if err != nil {
		return nil, err
	}
	if flagBrokerURL != "" {
		cfg.Broker.URL = flagBrokerURL
	}

	r := &runtime{
		cfg:    cfg,
		log:    logging.New(),
		topics: transport.NewTopics(cfg.TopicBase),
	}

	if cfg.Metrics.Enabled {
		r.collector = metrics.NewCollector(cfg.Metrics.CollectorConfig(), r.log)
		if cfg.Greptime.Endpoint != "" {
			sink, err := metrics.NewGreptimeSink(cfg.Greptime.Endpoint, cfg.Greptime.Database, cfg.Broker.ClientID, r.log)
			if err != nil {
				return nil, err
			}
			r.collector.SetSink(sink)
		}
	}

	client, err := buildClient(cfg, r.collector)
	if err != nil {
		return nil, err
	}
	r.client = client
	r.cleanups = append(r.cleanups, client.Close)

	r.orchestrator = fleet.NewOrchestrator(client, fleet.Options{
		MaxDevices:    cfg.Fleet.MaxDevices,
		StartupDelay:  cfg.Fleet.StartupDelay(),
		ShutdownDelay: cfg.Fleet.ShutdownDelay(),
		Topics:        r.topics,
	}, r.log)
	r.registry = fleet.NewRegistry(client, r.topics, nil, r.log)

	if flagLogFile != "" {
		fs, err := fleet.NewFileSink(flagLogFile)
		if err != nil {
			r.cleanup()
			return nil, err
		}
		r.cleanups = append(r.cleanups, func() { fs.Close() })
		r.eventSink = fs
		r.orchestrator.SetEventSink(fs)
		r.registry.SetEventSink(fs)
	}
	return r, nil
}

// buildClient picks the transport: a real MQTT connection, or an
// in-memory broker echoing publishes to STDOUT for print-only runs.
func buildClient(cfg *config.SimulationConfig, collector *metrics.Collector) (transport.Client, error) {
	var client transport.Client
	if flagPrintOnly {
		client = transport.NewLogClient(transport.NewMemoryBroker().Client())
	} else {
		mc, err := transport.NewMQTTClient(transport.MQTTOptions{
			BrokerURL: cfg.Broker.URL,
			ClientID:  cfg.Broker.ClientID,
			Username:  cfg.Broker.Username,
			Password:  cfg.Broker.Password,
		})
		if err != nil {
			return nil, err
		}
		client = mc
	}
	if collector == nil {
		return client, nil
	}
	return transport.NewCounting(client, transport.Hooks{
		OnPublish: func(_ string, _ int) { collector.IncrementMQTTMessages(1, 0) },
		OnReceive: func(_ string, _ int) { collector.IncrementMQTTMessages(0, 1) },
		OnError:   func(error) { collector.IncrementErrors(1) },
	}), nil
}

// specsFromGroups converts the configured device groups into
// orchestrator specs. Unknown types are rejected up front so the fleet
// never launches half-configured.
func specsFromGroups(groups []config.Group) ([]fleet.Spec, error) {
	specs := make([]fleet.Spec, 0, len(groups))
	for _, g := range groups {
		typ, err := device.ParseType(g.Type)
		if err != nil {
			return nil, err
		}
		specs = append(specs, fleet.Spec{
			Type:  typ,
			Count: g.Count,
			Config: device.Config{
				Name:               g.Name,
				Room:               g.Room,
				Site:               g.Site,
				StatusInterval:     time.Duration(g.StatusIntervalS) * time.Second,
				PressIntervalMin:   time.Duration(g.PressIntervalMinS) * time.Second,
				PressIntervalMax:   time.Duration(g.PressIntervalMaxS) * time.Second,
				HealthInterval:     time.Duration(g.HealthIntervalS) * time.Second,
				MeshUpdateInterval: time.Duration(g.MeshUpdateIntervalS) * time.Second,
				InitialBattery:     g.InitialBattery,
				InitialSignal:      g.InitialSignal,
			},
			Template: g.Template,
		})
	}
	return specs, nil
}
