package cmd

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"discount-harvester/browser"
	"discount-harvester/config"
	"discount-harvester/extract"
	"discount-harvester/models"
	"discount-harvester/scraper/configurator"
	"discount-harvester/scraper/listing"
	"discount-harvester/services"
	"discount-harvester/storage"
	"discount-harvester/utils"
)

// env holds the components shared by every command.
type env struct {
	cfg       *config.Config
	logger    utils.EventSink
	store     storage.TableStore
	mirror    storage.Mirror
	primary   *storage.PrimaryDataset
	secondary *storage.SecondaryDataset
	report    *storage.DiscrepancyReport
}

// newEnv wires the dataset stores and, when enabled, the Postgres mirror.
// A mirror that cannot connect is logged and left out.
func newEnv(cfg *config.Config, logger utils.EventSink) *env {
	var store storage.TableStore
	switch cfg.DataFormat {
	case "csv":
		store = storage.NewCSVStore(cfg.DataDir)
	default:
		store = storage.NewXLSXStore(cfg.DataDir)
	}

	e := &env{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		primary:   storage.NewPrimaryDataset(store),
		secondary: storage.NewSecondaryDataset(store),
		report:    storage.NewDiscrepancyReport(store),
	}

	if cfg.PostgresMirror {
		pm, err := storage.NewPostgresMirror(cfg.DSN())
		if err != nil {
			logger.Warn("[env] Postgres mirror disabled: %v", err)
		} else {
			e.mirror = pm
		}
	}
	return e
}

// fileExt is the extension of dataset files in the configured format.
func fileExt(cfg *config.Config) string {
	if cfg.DataFormat == "csv" {
		return ".csv"
	}
	return ".xlsx"
}

func (e *env) reconciler() *services.Reconciler {
	return services.NewReconciler(e.primary, e.secondary, e.report, e.mirror, e.logger)
}

// pipeline launches Chrome and builds the full pipeline. The returned
// browser must be closed by the caller.
func (e *env) pipeline(ctx context.Context) (*services.Pipeline, browser.Browser, error) {
	chrome, err := browser.Launch(ctx, browser.Options{
		ChromeBin:      e.cfg.ChromeBin,
		Headless:       e.cfg.Headless,
		BlockResources: true,
	}, e.logger)
	if err != nil {
		return nil, nil, err
	}

	nav := configurator.NewNavigator(extract.NewGetchaStrategy(), configurator.Timeouts{
		ModelFrame:  ms(e.cfg.ModelTimeoutMs),
		DetailReady: ms(e.cfg.DetailTimeoutMs),
		Tiles:       ms(e.cfg.TileTimeoutMs),
		Navigation:  ms(e.cfg.NavTimeoutMs),
		PageLoad:    ms(e.cfg.PageLoadTimeoutMs),
		Attempt:     ms(e.cfg.AttemptTimeoutMs),
	}, e.logger)
	sup := configurator.NewSupervisor(chrome, nav, e.cfg.MaxRetries, e.cfg.RetryDelay(), e.logger)
	lh := listing.New(chrome, e.secondary, e.logger)

	return services.NewPipeline(sup, lh, e.reconciler(), e.primary, e.mirror, e.logger), chrome, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (e *env) Close() {
	if e.mirror != nil {
		if err := e.mirror.Close(); err != nil {
			e.logger.Warn("[env] close mirror: %v", err)
		}
	}
}

func loadBrands(cfg *config.Config) ([]models.Brand, error) {
	brands, err := config.LoadBrands(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "load brand URLs")
	}
	return brands, nil
}
