package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/opentalon/leadgate/internal/analysis"
	"github.com/opentalon/leadgate/internal/config"
	"github.com/opentalon/leadgate/internal/gateway"
	"github.com/opentalon/leadgate/internal/gateway/leads"
	"github.com/opentalon/leadgate/internal/gateway/script"
	"github.com/opentalon/leadgate/internal/logging"
	"github.com/opentalon/leadgate/internal/mailing"
	"github.com/opentalon/leadgate/internal/metrics"
	"github.com/opentalon/leadgate/internal/model"
	"github.com/opentalon/leadgate/internal/orchestrator"
	"github.com/opentalon/leadgate/internal/scheduler"
	"github.com/opentalon/leadgate/internal/server"
	"github.com/opentalon/leadgate/internal/siek"
	"github.com/opentalon/leadgate/internal/store"
)

// app holds every long-lived component built from one config.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	promReg  *prometheus.Registry
	metrics  *metrics.Metrics
	orch     *orchestrator.Orchestrator
	db       *store.DB
	leads    *store.LeadStore
	analyses *store.AnalysisStore
	redis    *redis.Client
	service  *analysis.Service
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config:\n%w", err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, promReg: prometheus.NewRegistry()}
	a.promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.promReg)

	orch, err := a.buildOrchestrator()
	if err != nil {
		return nil, err
	}
	a.orch = orch

	db, err := store.Open(cfg.Store.Driver, cfg.Store.DSN, cfg.Store.DataDir)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.leads = store.NewLeadStore(db)
	a.analyses = store.NewAnalysisStore(db)

	var sink analysis.Store = a.analyses
	if cfg.Store.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		sink = store.Fanout{a.analyses, store.NewRedisAnalysisStore(a.redis, "")}
		logger.Info("mirroring analyses to redis", zap.String("addr", cfg.Store.RedisAddr))
	}

	a.service = analysis.NewService(a.orch,
		analysis.WithStore(sink),
		analysis.WithLogger(logger.Named("analysis")),
		analysis.WithMetrics(a.metrics),
		analysis.WithMaxIterations(cfg.Orchestrator.MaxIterations),
		analysis.WithSystemInstruction(cfg.Orchestrator.SystemInstruction),
	)
	return a, nil
}

func (a *app) buildOrchestrator() (*orchestrator.Orchestrator, error) {
	cfg := a.cfg
	registryClient := siek.New(cfg.Siek.BaseURL, cfg.Siek.APIKey,
		siek.WithHTTPClient(&http.Client{Timeout: cfg.Siek.Timeout}))
	if !registryClient.Configured() {
		a.logger.Warn("siek api key not configured; registry lookups will fail")
	}
	gemini := model.NewGemini(model.GeminiConfig{
		APIKey:  cfg.Model.APIKey,
		Model:   cfg.Model.Name,
		BaseURL: cfg.Model.BaseURL,
		Timeout: cfg.Model.Timeout,
	})
	if cfg.Model.APIKey == "" {
		a.logger.Warn("model api key not configured; runs will fail")
	} else {
		a.logger.Debug("model configured", zap.String("model", cfg.Model.Name), logging.Redacted("api_key", cfg.Model.APIKey))
	}

	reg := gateway.NewRegistry()
	if err := reg.Register(leads.New(registryClient, gemini, a.logger.Named("gateway"))); err != nil {
		return nil, err
	}
	for _, spec := range cfg.ScriptGateways {
		gw, err := script.New(spec, cfg.ScriptDir, a.logger.Named("script"))
		if err != nil {
			return nil, err
		}
		if err := reg.Register(gw); err != nil {
			return nil, err
		}
	}
	reg.Seal()

	return orchestrator.New(gemini, reg,
		orchestrator.WithModelName(gemini.Model()),
		orchestrator.WithGeneration(model.GenerationConfig{
			Temperature:     cfg.Model.Temperature,
			TopP:            cfg.Model.TopP,
			TopK:            cfg.Model.TopK,
			MaxOutputTokens: cfg.Model.MaxOutputTokens,
		}),
		orchestrator.WithMaxIterations(cfg.Orchestrator.MaxIterations),
		orchestrator.WithCallTimeout(cfg.Orchestrator.CallTimeout),
		orchestrator.WithLogger(a.logger.Named("orchestrator")),
		orchestrator.WithMetrics(a.metrics),
	), nil
}

func (a *app) server() *server.Server {
	deps := server.Deps{
		Leads:     a.leads,
		Analyses:  a.analyses,
		Analyzer:  a.service,
		Inspector: a.orch,
		Metrics:   a.metrics,
		Gatherer:  a.promReg,
		Logger:    a.logger,
	}
	oc := a.cfg.Mailing.Octopus
	if octopus := mailing.NewOctopus(mailing.OctopusConfig{BaseURL: oc.BaseURL, APIKey: oc.APIKey, ListID: oc.ListID}, nil); octopus.Configured() {
		deps.Mailing = octopus
	}
	sc := a.cfg.Mailing.SMTP
	if smtp := mailing.NewSMTPNotifier(mailing.SMTPConfig{
		Addr: sc.Addr, Username: sc.Username, Password: sc.Password, From: sc.From, To: sc.To,
	}); smtp.Configured() {
		deps.Notifier = smtp
	}
	return server.New(deps, server.Options{
		AllowOrigins: a.cfg.Server.AllowOrigins,
		IntakeRate:   a.cfg.Server.IntakeRate,
		IntakeBurst:  a.cfg.Server.IntakeBurst,
	})
}

func (a *app) scheduler() *scheduler.Scheduler {
	return scheduler.New(map[string]scheduler.Action{
		scheduler.ActionReanalyzePending: scheduler.ReanalyzePending(a.leads, a.service),
	}, a.logger)
}

func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
