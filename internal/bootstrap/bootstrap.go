package bootstrap

import (
	"context"
	"fmt"

	"github.com/saralhq/saral/internal/config"
	"github.com/saralhq/saral/internal/core/ports"
	"github.com/saralhq/saral/internal/core/usecase"
	"github.com/saralhq/saral/internal/infrastructure/extractor/pdftext"
	"github.com/saralhq/saral/internal/infrastructure/gateway"
	"github.com/saralhq/saral/internal/infrastructure/queue/nats"
	"github.com/saralhq/saral/internal/infrastructure/repository/postgres"
	"github.com/saralhq/saral/internal/infrastructure/resilience"
	"github.com/saralhq/saral/internal/infrastructure/storage/localfs"
	"github.com/saralhq/saral/internal/infrastructure/storage/s3"
)

type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	Documents  ports.DocumentStore
	AnalyzerUC ports.DocumentAnalyzer
	ChatUC     ports.ChatService
	LibraryUC  ports.DocumentLibrary

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	documents := postgres.NewDocumentRepository(db)
	if err := documents.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	conversations := postgres.NewConversationRepository(db)

	rawFiles, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	client := gateway.New(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayModel,
		gateway.WithExecutor(executor))
	speech := gateway.NewSpeech(client)
	fallback := pdftext.New()

	analyzerUC := usecase.NewAnalyzeDocumentUseCase(documents, client, fallback, rawFiles, queue)
	chatUC := usecase.NewChatSessionUseCase(documents, conversations, client, speech)
	libraryUC := usecase.NewLibraryUseCase(documents)

	return &App{
		Config: cfg,

		Queue:      queue,
		Documents:  documents,
		AnalyzerUC: analyzerUC,
		ChatUC:     chatUC,
		LibraryUC:  libraryUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "s3":
		return s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
	case "local", "":
		return localfs.New(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
