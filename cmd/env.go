package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tallyconv/internal/extract"
	"github.com/sells-group/tallyconv/internal/monitoring"
	"github.com/sells-group/tallyconv/internal/pipeline"
	"github.com/sells-group/tallyconv/internal/resilience"
	"github.com/sells-group/tallyconv/internal/store"
	"github.com/sells-group/tallyconv/internal/validate"
)

// env bundles the wired pipeline and its closeable resources.
type env struct {
	Service *pipeline.Service
	Store   store.Store
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// initService wires persistence, extraction, and validation from the loaded
// config.
func initService(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("store connect")

	var st store.Store
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*store.PostgresStore, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		})
		if err != nil {
			return nil, err
		}
		st = pg
	default:
		lite, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = lite
	}
	if err := resilience.Do(ctx, retryCfg, st.Migrate); err != nil {
		st.Close()
		return nil, err
	}

	blobs, err := store.NewFSBlobStore(cfg.Blob.Dir)
	if err != nil {
		st.Close()
		return nil, err
	}

	layout := extract.LayoutOptions{
		RowTolerance: cfg.Extract.RowTolerance,
		ColumnGap:    cfg.Extract.ColumnGap,
	}
	extractor := extract.NewService(
		extract.NewPDFExtractor(layout),
		extract.NewImageExtractor(extract.NewTesseractEngine(cfg.Extract.OCRLanguage)),
	)

	profile := validate.Default()
	if cfg.Profile.Path != "" {
		profiles, err := validate.LoadProfiles(cfg.Profile.Path)
		if err != nil {
			st.Close()
			return nil, err
		}
		p, ok := profiles[cfg.Profile.Name]
		if !ok {
			st.Close()
			return nil, eris.Errorf("unknown validation profile %q", cfg.Profile.Name)
		}
		profile = p
	}

	svc := pipeline.New(st, blobs, extractor, profile).
		WithMetrics(monitoring.NewCollector())
	return &env{
		Service: svc,
		Store:   st,
	}, nil
}
