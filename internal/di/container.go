package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/adapters/llm"
	"github.com/mikey/inbox-triage/internal/adapters/mail"
	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/factory"
	"github.com/mikey/inbox-triage/internal/instrumentation"
	"github.com/mikey/inbox-triage/internal/logging"
	"github.com/mikey/inbox-triage/internal/poller"
	"github.com/mikey/inbox-triage/internal/ports"
	"github.com/mikey/inbox-triage/internal/server"
	"github.com/mikey/inbox-triage/internal/utils"
)

// BuildContainer creates and configures the dependency injection container
// of the daemon. An empty configPath searches the default locations.
func BuildContainer(configPath string) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() (*config.Config, error) {
		return config.New(configPath)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}
	if err := provideShared(container); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewDeliveryFactory); err != nil {
		return nil, err
	}

	// Register store
	if err := container.Provide(func(f *factory.StoreFactory) (ports.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	// Register notifier and reply sender
	if err := container.Provide(func(f *factory.DeliveryFactory, store ports.Store) (core.Notifier, error) {
		return f.CreateNotifier(store)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.DeliveryFactory) (core.ReplySender, error) {
		return f.CreateReplySender(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(func(cfg *config.Config) (*instrumentation.Provider, error) {
		return instrumentation.NewProvider(context.Background(), "inbox-triage", cfg.GetMetrics().Enabled)
	}); err != nil {
		return nil, err
	}

	// Register pipeline coordinator
	if err := container.Provide(func(
		cfg *config.Config,
		store ports.Store,
		assistant *llm.Assistant,
		notifier core.Notifier,
		metrics *instrumentation.Provider,
		logger *zap.Logger,
	) (*core.Coordinator, error) {
		pipeline, err := cfg.GetPipeline()
		if err != nil {
			return nil, err
		}
		return core.NewCoordinator(core.Collaborators{
			Buckets:    store,
			Emails:     store,
			Contexts:   store,
			Outcomes:   store,
			Classifier: assistant,
			Summarizer: assistant,
			Drafter:    assistant,
			Notifier:   notifier,
			Observer:   metrics.Metrics(),
		}, core.PipelineOptions{
			Workers:     pipeline.Workers,
			StepTimeout: pipeline.StepTimeout,
			BatchSize:   pipeline.BatchSize,
		}, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register reviewer
	if err := container.Provide(func(
		store ports.Store,
		assistant *llm.Assistant,
		sender core.ReplySender,
		logger *zap.Logger,
	) *core.Reviewer {
		return core.NewReviewer(store, store, store, assistant, sender, logger)
	}); err != nil {
		return nil, err
	}

	// Register poller
	if err := container.Provide(func(
		cfg *config.Config,
		store ports.Store,
		coordinator *core.Coordinator,
		logger *zap.Logger,
	) (ports.Runner, error) {
		pipeline, err := cfg.GetPipeline()
		if err != nil {
			return nil, err
		}
		return poller.NewPoller(store, coordinator, pipeline.PollInterval, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register SMTP ingest
	if err := container.Provide(func(cfg *config.Config, store ports.Store, logger *zap.Logger) *mail.IngestServer {
		c := cfg.GetIngest()
		return mail.NewIngestServer(mail.IngestConfig{
			ListenAddress:   c.ListenAddress,
			Domain:          c.Domain,
			MaxMessageBytes: c.MaxMessageBytes,
		}, store, logger)
	}); err != nil {
		return nil, err
	}

	// Register HTTP server
	if err := container.Provide(func(
		cfg *config.Config,
		runner ports.Runner,
		reviewer *core.Reviewer,
		metrics *instrumentation.Provider,
		logger *zap.Logger,
	) *server.Server {
		s := cfg.GetServer()
		return server.NewServer(server.Config{
			ListenAddress: s.ListenAddress,
			CronSecret:    s.CronSecret,
			APIToken:      s.APIToken,
		}, runner, reviewer, metrics.Handler(), logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideShared registers the text processor and LLM assistant used by both
// the daemon and the CLI
func provideShared(container *dig.Container) error {
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return err
	}
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	return container.Provide(func(f *factory.LLMFactory) (*llm.Assistant, error) {
		return f.CreateAssistant(context.Background())
	})
}
