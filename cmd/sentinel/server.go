package main

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/nats-io/nats.go"

	"github.com/cc-sentinel/sentinel/internal/acquisition"
	"github.com/cc-sentinel/sentinel/internal/alerting"
	"github.com/cc-sentinel/sentinel/internal/config"
	"github.com/cc-sentinel/sentinel/internal/extraction"
	"github.com/cc-sentinel/sentinel/internal/filter"
	"github.com/cc-sentinel/sentinel/internal/model"
	"github.com/cc-sentinel/sentinel/internal/persistence"
	"github.com/cc-sentinel/sentinel/internal/pipeline"
	"github.com/cc-sentinel/sentinel/internal/slog"
	"github.com/cc-sentinel/sentinel/internal/telemetry"
	"github.com/cc-sentinel/sentinel/internal/typing"
)

// pipelineSet holds everything buildPipeline constructs, so main can
// shut it all down in reverse order.
type pipelineSet struct {
	acquisition   *acquisition.Server
	store         *persistence.Store
	blocklist     *filter.IPBlocklistFilter
	logObserver   *alerting.LogObserver
	queueReporter gocron.Scheduler
	natsConn      *nats.Conn
}

// buildPipeline wires the five stages in the order the request flows:
// acquisition -> filter -> typing -> extraction -> model. Construction
// happens leaf-first (model has no successor) so each Successor field
// can be set from an already-built value, per the teacher's
// server.go "build deepest dependency first" ordering.
func buildPipeline(cfg config.ProgramConfig, metrics *telemetry.Metrics) (*pipelineSet, error) {
	store, err := persistence.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := store.StartMaintenance(persistence.DefaultMaintenanceInterval); err != nil {
		return nil, err
	}

	queueReporter, err := telemetry.StartQueueDepthReporter(metrics, "write", store, telemetry.DefaultQueueDepthInterval)
	if err != nil {
		return nil, err
	}

	logObserver, err := alerting.NewLogObserver("./var/alerting", true)
	if err != nil {
		return nil, err
	}

	observers := []pipeline.Observer{logObserver}

	var natsConn *nats.Conn
	if cfg.NatsURL != "" {
		natsConn, err = nats.Connect(cfg.NatsURL)
		if err != nil {
			return nil, err
		}
		observers = append(observers, &alerting.NatsObserver{Conn: natsConn, Subject: cfg.NatsSubject})
	}

	attachAll := func(stage pipeline.Stage) {
		for _, o := range observers {
			stage.Attach(o)
		}
	}

	modelStage, err := model.NewStage([]model.Plugin{model.NewBaselinePlugin(store)})
	if err != nil {
		return nil, err
	}
	modelStage.Training = cfg.Mode == "train"
	modelStage.Source = store
	attachAll(modelStage)

	ngramPlugin := extraction.NewNGramPlugin(extraction.NewManager())
	ngramPlugin.Training = cfg.Mode == "train"
	ngramPlugin.Sink = store

	extractionStage, err := extraction.NewStage(
		[]extraction.Plugin{ngramPlugin},
		telemetry.Observe(metrics, "model", modelStage),
	)
	if err != nil {
		return nil, err
	}
	extractionStage.Training = cfg.Mode == "train"
	extractionStage.Sink = store
	attachAll(extractionStage)

	horizonCfg := typing.DefaultConfig()
	if d, err := time.ParseDuration(cfg.ShortHorizon); err == nil {
		horizonCfg.ShortHorizon = d
	}
	if d, err := time.ParseDuration(cfg.MediumHorizon); err == nil {
		horizonCfg.MediumHorizon = d
	}
	if d, err := time.ParseDuration(cfg.LongHorizon); err == nil {
		horizonCfg.LongHorizon = d
	}
	horizonCfg.Threshold = cfg.AlertThreshold

	tree := typing.NewTree(time.Now(), horizonCfg)
	if cfg.TypingTopologyFile != "" {
		topology, err := typing.LoadCoreConfig(cfg.TypingTopologyFile)
		if err != nil {
			return nil, err
		}
		tree.Bootstrap(topology)
	}
	typingStage := typing.NewStage(tree, telemetry.Observe(metrics, "extraction", extractionStage))
	attachAll(typingStage)

	var plugins []filter.Plugin
	plugins = append(plugins, &filter.DoubleDecodeFilter{})

	var blocklist *filter.IPBlocklistFilter
	if cfg.BlocklistURL != "" {
		interval, err := time.ParseDuration(cfg.BlocklistInterval)
		if err != nil {
			interval = filter.DefaultBlocklistRefreshInterval
		}
		blocklist, err = filter.NewIPBlocklistFilter(cfg.BlocklistURL, interval)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, blocklist)
	}
	if len(cfg.ExpressionRules) > 0 {
		rules := make([]filter.ExpressionRule, len(cfg.ExpressionRules))
		for i, r := range cfg.ExpressionRules {
			rules[i] = filter.ExpressionRule{Name: r.Name, Expr: r.Expr, Reason: r.Reason}
		}
		exprFilter, err := filter.NewExpressionFilter(rules)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, exprFilter)
	}

	filterStage := filter.NewStage(plugins, telemetry.Observe(metrics, "typing", typingStage))
	attachAll(filterStage)

	srv := acquisition.NewServer(acquisition.Config{
		Addr:      cfg.Addr,
		Upstream:  cfg.Upstream,
		Successor: telemetry.Observe(metrics, "filter", filterStage),
		Tree:      tree,
		Registry:  metrics.Registry(),
	})

	return &pipelineSet{
		acquisition:   srv,
		store:         store,
		blocklist:     blocklist,
		logObserver:   logObserver,
		queueReporter: queueReporter,
		natsConn:      natsConn,
	}, nil
}

func (p *pipelineSet) shutdown(ctx context.Context) {
	if err := p.acquisition.Shutdown(ctx); err != nil {
		slog.Warnf("server: acquisition shutdown: %v", err)
	}
	if p.blocklist != nil {
		if err := p.blocklist.Close(); err != nil {
			slog.Warnf("server: blocklist shutdown: %v", err)
		}
	}
	if p.queueReporter != nil {
		if err := p.queueReporter.Shutdown(); err != nil {
			slog.Warnf("server: queue depth reporter shutdown: %v", err)
		}
	}
	if err := p.store.Close(); err != nil {
		slog.Warnf("server: persistence shutdown: %v", err)
	}
	if err := p.logObserver.Close(); err != nil {
		slog.Warnf("server: alert log shutdown: %v", err)
	}
	if p.natsConn != nil {
		p.natsConn.Close()
	}
}
