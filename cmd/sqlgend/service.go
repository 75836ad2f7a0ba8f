package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sqlgend/internal/common/fsutil"
	"sqlgend/internal/config"
	"sqlgend/internal/engine"
	"sqlgend/internal/pipeline"
	"sqlgend/internal/profile"
	"sqlgend/internal/schema"
	"sqlgend/internal/weights"
	"sqlgend/pkg/types"
)

// service wires the engine, pipeline, and database together and backs both
// the HTTP API and the one-shot CLI commands.
type service struct {
	eng            *engine.Engine
	orch           *pipeline.Orchestrator
	reg            *profile.Registry
	resolver       weights.Resolver
	db             *sql.DB
	exec           *schema.Executor
	defaultProfile string
}

func buildService(cfg config.Config, logger zerolog.Logger) (*service, error) {
	reg, err := profile.NewRegistry(cfg.Profiles)
	if err != nil {
		return nil, fmt.Errorf("build profile registry: %w", err)
	}
	weightsDir, err := fsutil.ExpandHome(cfg.WeightsDir)
	if err != nil {
		return nil, err
	}
	if !fsutil.PathExists(weightsDir) {
		logger.Warn().Str("dir", weightsDir).Msg("weights directory not found; no profile will resolve")
	}
	resolver := weights.NewDirResolver(weightsDir)

	src, db, err := openDB(cfg.DB)
	if err != nil {
		return nil, err
	}

	eng := engine.New(engine.Config{
		Profiles:      reg,
		Resolver:      resolver,
		BudgetMB:      cfg.MemBudgetMB,
		MarginMB:      cfg.MemMarginMB,
		MaxQueueDepth: cfg.MaxQueueDepth,
		Threads:       cfg.Threads,
		Publisher:     pipeline.NewMetricsPublisher(nil),
	})

	orch := pipeline.New(eng, src, pipeline.Config{
		Timeout:      time.Duration(cfg.ConvertTimeoutSec) * time.Second,
		ContextLimit: cfg.ContextLimit,
		Logger:       logger,
	})

	return &service{
		eng:            eng,
		orch:           orch,
		reg:            reg,
		resolver:       resolver,
		db:             db,
		exec:           schema.NewExecutor(db, cfg.DB.MaxRows),
		defaultProfile: cfg.DefaultProfile,
	}, nil
}

func openDB(cfg config.DB) (schema.Source, *sql.DB, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if cfg.DSN == "" {
			return nil, nil, fmt.Errorf("db.dsn is required")
		}
		dsn, err := fsutil.ExpandHome(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		src, db, err := schema.OpenSQLite(dsn)
		return src, db, err
	case "postgres", "pgx":
		src, db, err := schema.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Schema != "" {
			src = schema.NewPostgresSource(db, cfg.Schema)
		}
		return src, db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

func (s *service) Close() {
	_ = s.eng.Close()
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *service) Convert(ctx context.Context, question, profileID string) (*pipeline.Result, error) {
	if profileID == "" {
		profileID = s.defaultProfile
	}
	return s.orch.Convert(ctx, question, profileID)
}

func (s *service) Profiles() []types.ProfileInfo {
	profiles := s.reg.List()
	out := make([]types.ProfileInfo, 0, len(profiles))
	for _, p := range profiles {
		_, err := s.resolver.Resolve(p.WeightsFile)
		out = append(out, types.ProfileInfo{
			ID:        p.ID,
			Family:    string(p.Family),
			MinMemMB:  p.MinMemMB,
			Precision: string(p.Precision),
			Resolved:  err == nil,
		})
	}
	return out
}

func (s *service) Status() types.StatusResponse { return s.eng.Status() }

func (s *service) Ready() bool { return s.eng.Ready() }
