package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/docverify/internal/config"
	"github.com/kirillkom/docverify/internal/core/domain"
	"github.com/kirillkom/docverify/internal/core/ports"
	"github.com/kirillkom/docverify/internal/core/usecase"
	"github.com/kirillkom/docverify/internal/infrastructure/imageprep"
	"github.com/kirillkom/docverify/internal/infrastructure/ocr/tesseract"
	"github.com/kirillkom/docverify/internal/infrastructure/queue/nats"
	recordsfs "github.com/kirillkom/docverify/internal/infrastructure/repository/localfs"
	"github.com/kirillkom/docverify/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docverify/internal/infrastructure/resilience"
	"github.com/kirillkom/docverify/internal/infrastructure/scoring"
	"github.com/kirillkom/docverify/internal/infrastructure/scoring/process"
	"github.com/kirillkom/docverify/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docverify/internal/infrastructure/storage/minio"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue   ports.MessageQueue
	Records ports.AnalysisRecordStore

	AnalyzeUC   *usecase.AnalyzeDocumentUseCase
	IngestUC    *usecase.IngestDocumentUseCase
	ProcessUC   *usecase.ProcessAnalysisUseCase
	DownloadUC  *usecase.DownloadDocumentUseCase
	RetentionUC *usecase.RetentionUseCase

	closers []func()
}

// New wires the adapters selected by cfg. Resources opened before a failure
// are released before returning.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	clock := domain.SystemClock{}

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	records, err := app.newRecordStore(ctx, cfg, clock)
	if err != nil {
		return nil, err
	}
	app.Records = records

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Concurrency:        cfg.WorkerConcurrency,
		ResilienceExecutor: resilience.NewExecutor(resilience.QueuePublishPolicy(), logger),
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Queue = queue
	app.closers = append(app.closers, queue.Close)

	preprocessor, err := imageprep.New(cfg.ScratchDir, imageprep.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("init image preprocessor: %w", err)
	}

	var scorer ports.Scorer
	scorer, err = process.New(cfg.ScorerCommand, cfg.ScorerArgs, process.Options{
		Timeout: cfg.ScorerTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init scorer: %w", err)
	}
	if cfg.ScorerRetryEnabled {
		scorer = scoring.NewResilient(scorer, resilience.NewExecutor(resilience.ScorerPolicy(), logger))
	}

	extractor := tesseract.NewExtractor(tesseract.Options{Languages: splitLanguages(cfg.OCRLanguage)})

	var retrier usecase.Retrier
	if cfg.ProcessRetryEnabled {
		retrier = resilience.NewRetrier(resilience.NewExecutor(resilience.ProcessingPolicy(), logger), resilience.ClassifyDomainError)
	}

	app.AnalyzeUC = usecase.NewAnalyzeDocumentUseCase(preprocessor, scorer, extractor, preprocessor, clock)
	app.IngestUC = usecase.NewIngestDocumentUseCase(storage, queue, clock)
	app.ProcessUC = usecase.NewProcessAnalysisUseCase(storage, app.AnalyzeUC, records, preprocessor.ScratchDir(), retrier, clock)
	app.DownloadUC = usecase.NewDownloadDocumentUseCase(records, storage)
	app.RetentionUC = usecase.NewRetentionUseCase(preprocessor, records, cfg.ScratchMaxAge, cfg.RecordMaxAge)

	return app, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.ObjectStorage {
	case "", "local":
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		return storage, nil
	case "minio", "s3":
		storage, err := minio.New(ctx, minio.Config{
			Endpoint:  cfg.MinIOEndpoint,
			Region:    cfg.MinIORegion,
			Bucket:    cfg.MinIOBucket,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown OBJECT_STORAGE %q", cfg.ObjectStorage)
	}
}

func (a *App) newRecordStore(ctx context.Context, cfg config.Config, clock domain.Clock) (ports.AnalysisRecordStore, error) {
	switch cfg.RecordStore {
	case "", "fs":
		store, err := recordsfs.NewAnalysisStore(cfg.RecordsDir, clock, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("init record store: %w", err)
		}
		return store, nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { closeDB(db) })
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return postgres.NewAnalysisRepository(db, clock), nil
	default:
		return nil, fmt.Errorf("unknown RECORD_STORE %q", cfg.RecordStore)
	}
}

func splitLanguages(raw string) []string {
	var out []string
	for _, lang := range strings.FieldsFunc(raw, func(r rune) bool { return r == '+' || r == ',' }) {
		if lang = strings.TrimSpace(lang); lang != "" {
			out = append(out, lang)
		}
	}
	return out
}

func closeDB(db *sql.DB) { _ = db.Close() }

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
