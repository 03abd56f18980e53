package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autouploader/domain/repository"
	"autouploader/infrastructure/cache"
	youtubeclient "autouploader/infrastructure/clients/youtube"
	"autouploader/infrastructure/configuration"
	"autouploader/infrastructure/credentials"
	"autouploader/infrastructure/logger"
	"autouploader/infrastructure/persistence"
	"autouploader/infrastructure/pubsub"
	"autouploader/infrastructure/realtime"
	"autouploader/infrastructure/servicebus"
	"autouploader/infrastructure/watcher"
	httpHandler "autouploader/interfaces/http"
	"autouploader/server"
	"autouploader/usecase"

	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// OS env still has precedence over these files
	loaded := configuration.LoadEnvFromFile("config.env", ".env")
	logger.GetLogger().WithField("files", loaded).Info("Environment files loaded")

	if os.Getenv("LOG_FORMAT") == "" && os.Getenv("LOG_LEVEL") == "" {
		logger.Configure(configuration.C.Logger.Format, configuration.C.Logger.Level)
	}

	app := configuration.C.App
	settings := configuration.GetUploaderSettings()
	if err := settings.Validate(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Invalid uploader settings")
		os.Exit(2)
	}

	history := InitiateHistory()

	var quotaCache repository.IQuotaStateCache
	if configuration.C.RedisClient.Host != "" {
		redisClient, err := cache.NewCache(
			ctx,
			fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
			configuration.C.RedisClient.Username,
			configuration.C.RedisClient.Password,
		)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Redis not available - quota state will not survive restarts")
		} else {
			quotaCache = cache.NewQuotaStateCache(redisClient)
			defer redisClient.Close()
			logger.GetLogger().Info("Redis client initialized successfully.")
		}
	}

	taskHub := realtime.NewTaskHub()
	notifier, closeNotifiers := InitiateNotifiers(ctx, taskHub)
	defer closeNotifiers()

	policy := usecase.NewQuotaResetPolicy(settings.QuotaResetPolicy, settings.QuotaWindow())
	pool := usecase.NewCredentialPool(policy, quotaCache)

	youtubeClient := youtubeclient.NewYouTubeClient(youtubeclient.Options{
		ChunkSize:       int64(settings.ChunkSizeMB) * 1024 * 1024,
		AdaptiveChunks:  settings.AdaptiveChunks,
		MaxChunkResumes: settings.MaxChunkResumes,
		ConnectTimeout:  settings.ConnectTimeout(),
		ReadTimeout:     settings.ReadTimeout(),
	})

	metadata := usecase.NewMetadataBuilder(usecase.MetadataTemplate{
		TitleTemplate: settings.TitleTemplate,
		Description:   settings.Description,
		Tags:          settings.Tags,
		Privacy:       settings.Privacy,
		CategoryID:    settings.CategoryID,
	})
	deleter := usecase.NewDeletionManager(settings.DeleteRetryCount, settings.DeleteDelay())
	scheduler := usecase.NewScheduler(pool, youtubeClient, deleter, metadata, usecase.SchedulerOptions{
		MaxRetries:             settings.MaxRetries,
		FileUnavailableRetries: settings.FileUnavailableRetries,
		RetryBackoff:           settings.RetryBackoff(),
		RetryBackoffMax:        settings.RetryBackoffMax(),
		DeleteAfterUpload:      settings.DeleteAfterUpload,
	})
	if history != nil {
		scheduler = scheduler.WithHistory(history)
	}
	scheduler = scheduler.WithNotifier(notifier)

	folderWatcher := watcher.NewFolderWatcher(watcher.Options{
		Debounce:     settings.Debounce(),
		PollInterval: settings.PollInterval(),
		Extensions:   settings.VideoExtensions,
	}, scheduler.Known)

	store := credentials.NewFileStore(configuration.C.Credentials.SecretsDir, configuration.C.Credentials.TokensDir)
	engine := usecase.NewEngine(folderWatcher, scheduler, pool, store, youtubeClient, settings.CheckExistingFiles)
	if history != nil {
		engine = engine.WithHistory(history)
	}

	n, err := engine.LoadCredentials(ctx)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Failed to load credential projects")
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"projects":       n,
		"active_project": pool.ActiveID(),
	}).Info("Credential projects loaded")

	g.Go(func() error {
		return engine.Run(ctx)
	})

	if app.WatchDir != "" {
		engine.SetFolder(app.WatchDir)
		if app.AutoStart {
			if err := engine.StartWatching(app.WatchDir); err != nil {
				logger.GetLogger().WithField("error", err).WithField("folder", app.WatchDir).Error("Failed to start monitoring")
			}
		}
	}

	router := server.InitiateRouter(
		httpHandler.NewMonitorHandler(engine),
		httpHandler.NewTaskHandler(engine),
		httpHandler.NewCredentialHandler(engine),
		taskHub.Serve,
		app.SecretKey,
		app.AllowedOrigins,
	)

	logger.GetLogger().WithField("port", app.Port).Info("Starting application")
	httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// event streams end with the process context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	<-ctx.Done()
	logger.GetLogger().Info("Application shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateHistory opens the configured database and returns the upload
// history repository, or nil when no database is configured or reachable.
func InitiateHistory() repository.IUploadHistory {
	var (
		db  *sql.DB
		err error
	)
	switch configuration.C.Database.Vendor {
	case "mssql":
		if configuration.C.Database.Mssql.Host == "" {
			return nil
		}
		if db, err = persistence.NewMSSQLDB(configuration.C.Database.Mssql); err == nil {
			err = persistence.EnsureUploadHistorySchemaMSSQL(db)
		}
	case "postgres", "":
		if configuration.C.Database.Psql.Host == "" {
			return nil
		}
		if db, err = persistence.NewPostgreSQLDB(configuration.C.Database.Psql); err == nil {
			err = persistence.EnsureUploadHistorySchema(db)
		}
	default:
		logger.GetLogger().WithField("vendor", configuration.C.Database.Vendor).Warn("Unknown database vendor - upload history disabled")
		return nil
	}
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Database not available - upload history disabled")
		if db != nil {
			_ = db.Close()
		}
		return nil
	}

	logger.GetLogger().WithField("vendor", configuration.C.Database.Vendor).Info("Database connected.")
	if configuration.C.Database.Vendor == "mssql" {
		return persistence.NewUploadHistoryRepositoryMSSQL(db)
	}
	return persistence.NewUploadHistoryRepository(db)
}

// InitiateNotifiers builds the task event sinks that are configured on top
// of the local SSE hub.
func InitiateNotifiers(ctx context.Context, hub *realtime.TaskHub) (*usecase.MultiNotifier, func()) {
	var (
		sinks   = []repository.ITaskNotifier{hub}
		closers []func()
	)

	if configuration.C.Pubsub.ProjectID != "" && configuration.C.Pubsub.Topic != "" {
		client, err := pubsub.NewPubSub(ctx, configuration.C.Pubsub.ProjectID)
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while instantiate PubSub")
		} else {
			n := pubsub.NewTaskNotifier(client, configuration.C.Pubsub.Topic)
			sinks = append(sinks, n)
			closers = append(closers, func() {
				n.Close()
				_ = client.Close()
			})
		}
	}

	if configuration.C.ServiceBus.Namespace != "" && configuration.C.ServiceBus.Queue != "" {
		client, err := servicebus.NewServiceBus(ctx, configuration.C.ServiceBus.Namespace)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without Service Bus features")
		} else if n, err := servicebus.NewTaskNotifier(client, configuration.C.ServiceBus.Queue); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Failed to create Service Bus sender")
		} else {
			sinks = append(sinks, n)
			closers = append(closers, func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				n.Close(closeCtx)
				_ = client.Close(closeCtx)
			})
		}
	}

	return usecase.NewMultiNotifier(sinks...), func() {
		for _, c := range closers {
			c()
		}
	}
}
