package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/viant/afs"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wifiticket/guestpass/internal/config"
	"wifiticket/guestpass/internal/model"
	"wifiticket/guestpass/internal/printer"
	"wifiticket/guestpass/internal/render"
	"wifiticket/guestpass/internal/repository"
	"wifiticket/guestpass/internal/service"
	"wifiticket/guestpass/internal/tracing"
)

type application struct {
	generator service.GeneratorService
	tickets   service.TicketService
	closers   []func() error
	logger    *zap.Logger
}

// newApplication wires stores, generator, renderer and printer from cfg.
func newApplication(cfg *config.Config, logger *zap.Logger) (_ *application, err error) {
	app := &application{logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if cfg.Tracing.Enabled {
		if err := tracing.Init(serviceName, serviceVersion, cfg.Tracing.Output); err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}

	var redisClient *redis.Client
	lockBackend := cfg.LockBackend()
	if cfg.History.Backend == "redis" || lockBackend == "redis" {
		if redisClient, err = config.NewRedisClient(cfg.Database.Redis); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, redisClient.Close)
	}

	history, err := app.newHistoryStore(cfg, redisClient)
	if err != nil {
		return nil, err
	}

	var locker repository.Locker
	switch lockBackend {
	case "redis":
		locker = repository.NewRedisLocker(redisClient, cfg.Lock.TTL, cfg.Lock.RetryInterval)
	case "file":
		locker = repository.NewFileLocker(cfg.LockDir(), cfg.Lock.RetryInterval)
	default:
		locker = repository.NewMemoryLocker()
	}

	logger.Debug("history wired", zap.String("history", cfg.History.Backend), zap.String("lock", lockBackend))

	g := cfg.Generator
	app.generator = service.NewGeneratorService(history, locker, service.GeneratorOptions{
		Prefix:           g.Prefix,
		SSID:             g.SSID,
		FirstName:        g.FirstName,
		ValidityDays:     g.ValidityDays,
		PasswordLength:   g.PasswordLength,
		PasswordAlphabet: g.PasswordAlphabet,
		Token: service.TokenSpec{
			Letters:     g.Token.Letters,
			LetterCount: g.Token.LetterCount,
			Digits:      g.Token.Digits,
			DigitCount:  g.Token.DigitCount,
		},
		MaxIdentifierAttempts: g.MaxIdentifierAttempts,
		MaxPasswordAttempts:   g.MaxPasswordAttempts,
		LockKey:               cfg.Lock.Key,
	}, nil, logger.Named("generator"))

	artifacts, err := repository.NewAfsArtifactStore(afs.New(), repository.ArtifactDirs{
		JSON: cfg.Storage.JSONDir,
		CSV:  cfg.Storage.CSVDir,
		PDF:  cfg.Storage.PDFDir,
	}, cfg.Storage.CSVRetries, cfg.Storage.CSVRetryDelay)
	if err != nil {
		return nil, err
	}

	logo := render.FindLogo(cfg.Render.LogoDir, cfg.Render.LogoCandidates)
	if logo == "" {
		logger.Info("no logo found, cards use brand text", zap.String("logo_dir", cfg.Render.LogoDir))
	}
	renderer := render.NewPDFRenderer(render.Options{
		Brand:    cfg.Render.Brand,
		Author:   cfg.Render.Author,
		LogoPath: logo,
	}, logger.Named("render"))

	runner := printer.NewRunner()
	app.closers = append(app.closers, runner.Close)
	backends, err := printer.NewBackends(printer.Options{
		Backends:     cfg.Printer.Backends,
		SumatraPath:  cfg.Printer.SumatraPath,
		SwitchScript: cfg.Printer.SwitchScript,
		Timeout:      cfg.Printer.Timeout,
	}, runner)
	if err != nil {
		return nil, err
	}
	dispatcher := printer.NewDispatcher(backends, logger.Named("printer"))

	app.tickets = service.NewTicketService(app.generator, artifacts, renderer, dispatcher, cfg.Printer.Timeout, logger.Named("tickets"))
	return app, nil
}

func (a *application) newHistoryStore(cfg *config.Config, redisClient *redis.Client) (repository.HistoryStore, error) {
	switch cfg.History.Backend {
	case "postgres":
		db, err := config.NewPostgresDB(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		return a.gormHistory(db, cfg.Database.Postgres.AutoMigrate)
	case "sqlite":
		db, err := config.NewSQLiteDB(cfg.Database.SQLite)
		if err != nil {
			return nil, err
		}
		return a.gormHistory(db, cfg.Database.SQLite.AutoMigrate)
	case "redis":
		return repository.NewRedisHistoryStore(redisClient, cfg.History.Key), nil
	case "memory":
		return repository.NewMemoryHistoryStore(), nil
	default:
		return repository.NewFileHistoryStore(afs.New(), cfg.History.File)
	}
}

func (a *application) gormHistory(db *gorm.DB, migrate bool) (repository.HistoryStore, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	a.closers = append(a.closers, sqlDB.Close)

	if migrate {
		if err := model.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
		a.logger.Info("database migration completed")
	}
	return repository.NewGormHistoryStore(db), nil
}

// Close waits for queued print jobs, then releases connections in reverse
// order of creation.
func (a *application) Close() {
	if a.tickets != nil {
		a.tickets.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil
}
