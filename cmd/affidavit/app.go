package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-affidavit/internal/assembly"
	"github.com/a3tai/mcp-affidavit/internal/config"
	"github.com/a3tai/mcp-affidavit/internal/convert"
	"github.com/a3tai/mcp-affidavit/internal/logging"
	"github.com/a3tai/mcp-affidavit/internal/metrics"
	"github.com/a3tai/mcp-affidavit/internal/publish"
	"github.com/a3tai/mcp-affidavit/internal/templates"
)

// app holds the collaborators every command runs against
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   publish.Store
	service *assembly.Service
}

// newApp wires the template store, converter, artifact store and assembly
// service from cfg
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	if cfg.IsDebug() {
		logger.Debug("starting with configuration", zap.String("config", cfg.String()))
	}

	tmpl, err := templates.NewStore(cfg.TemplateDir, templates.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open template directory: %w", err)
	}

	m := metrics.New()
	profile := convert.NewProfile(cfg.ScratchDir)
	office := convert.NewOffice(cfg.ConverterBinary, profile)
	converter := convert.NewBracket(office, profile,
		convert.WithTimeout(cfg.ConverterTimeout),
		convert.WithRetries(cfg.ConverterRetries),
		convert.WithLogger(logger),
		convert.WithMetrics(m.ConverterWaiting, m.Conversions),
	)

	store, err := newArtifactStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pubOpts := []publish.Option{publish.WithLogger(logger)}
	if cfg.OutputDir != "" {
		pubOpts = append(pubOpts, publish.WithOutputDir(cfg.OutputDir))
	}
	if cfg.IsServerMode() {
		pubOpts = append(pubOpts, publish.WithBaseURL(cfg.ArtifactBaseURL()))
	}
	publisher := publish.NewPublisher(store, pubOpts...)

	service, err := assembly.NewService(tmpl, converter, publisher,
		assembly.WithLogger(logger),
		assembly.WithMetrics(m),
		assembly.WithLabelPolicy(cfg.Policy()),
		assembly.WithMaxFileSize(cfg.MaxFileSize),
		assembly.WithScratchDir(cfg.ScratchDir),
		assembly.WithIdentity(cfg.ServerName, cfg.Version),
		assembly.WithConverterProbe(office.Binary(), office.Available),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: store, service: service}, nil
}

func newArtifactStore(ctx context.Context, cfg *config.Config) (publish.Store, error) {
	switch cfg.Store {
	case config.StoreRedis:
		store, err := publish.NewRedisStore(ctx, publish.RedisOptions{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.ArtifactTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect artifact store: %w", err)
		}
		return store, nil
	default:
		return publish.NewMemoryStore(cfg.ArtifactTTL), nil
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close artifact store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
