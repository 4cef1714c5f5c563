package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicsync/config"
	"civicsync/controllers"
	"civicsync/engagement"
	"civicsync/lifecycle"
	"civicsync/mentor"
	"civicsync/middlewares"
	"civicsync/routes"
	"civicsync/store"
	"civicsync/store/memstore"
	"civicsync/store/mongostore"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "8080", "Port to listen on")
	serveCmd.Flags().Bool("memory", false, "Keep all state in memory instead of MongoDB")
	serveCmd.Flags().StringSlice("mentor", nil, "User id granted mentor capability in memory mode (repeatable)")
}

// backend is the set of stores the server runs against.
type backend struct {
	issues   store.IssueStore
	provider mentor.Provider
	db       *mongo.Database
	redis    *redis.Client
	close    func(context.Context)
}

func memoryBackend(mentorIDs []string) (*backend, error) {
	provider := mentor.NewStaticProvider()
	for _, raw := range mentorIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid mentor id %q: %w", raw, err)
		}
		provider.Grant(id)
	}
	return &backend{
		issues:   memstore.New(),
		provider: provider,
		close:    func(context.Context) {},
	}, nil
}

func mongoBackend(ctx context.Context, settings *config.Settings, logger *slog.Logger) (*backend, error) {
	var (
		client *mongo.Client
		db     *mongo.Database
		rdb    *redis.Client
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		client, db, err = config.ConnectDB(gctx, settings)
		return err
	})
	if settings.RedisAddress != "" {
		g.Go(func() error {
			var err error
			rdb, err = config.ConnectRedis(gctx, settings)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if client != nil {
			_ = client.Disconnect(context.Background())
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}
	logger.Info("MongoDB connection established", "database", settings.MongoDatabase)

	var provider mentor.Provider = mentor.NewMongoProvider(db)
	if rdb != nil {
		logger.Info("Redis connection established", "address", settings.RedisAddress)
		provider = mentor.NewCachedProvider(provider, rdb, settings.MentorCacheTTL)
	} else {
		logger.Warn("REDIS_ADDRESS not set; issue rate limit and mentor cache disabled")
	}

	return &backend{
		issues:   mongostore.New(db),
		provider: provider,
		db:       db,
		redis:    rdb,
		close: func(ctx context.Context) {
			if rdb != nil {
				_ = rdb.Close()
			}
			if err := client.Disconnect(ctx); err != nil {
				logger.Error("failed to disconnect from MongoDB", "error", err)
			}
		},
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(settings)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var b *backend
	if settings.MemoryStore {
		mentorIDs, _ := cmd.Flags().GetStringSlice("mentor")
		logger.Warn("running with in-memory store; state is lost on exit", "mentors", len(mentorIDs))
		b, err = memoryBackend(mentorIDs)
	} else {
		b, err = mongoBackend(ctx, settings, logger)
	}
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		b.close(closeCtx)
	}()

	resolver := mentor.NewResolver(b.provider)
	engine := lifecycle.NewEngine(b.issues, resolver, lifecycle.WithConflictAttempts(settings.ConflictRetries))
	ledger := engagement.NewLedger(b.issues,
		engagement.WithConflictAttempts(settings.ConflictRetries),
		engagement.WithLogger(logger),
	)

	opts := routes.RouterOptions{
		Issues:      controllers.NewIssueController(engine, ledger, resolver, logger),
		RequireAuth: middlewares.AuthMiddleware(settings.JWTSecret, logger),
		CreateLimit: middlewares.IssueRateLimiter(b.redis, settings.IssueLimitQueue, settings.IssueDailyLimit, logger),
		CORSOrigins: settings.CORSOrigins,
		Logger:      logger,
	}
	if b.db != nil {
		opts.Auth = controllers.NewAuthController(b.db, settings, logger)
	}

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           routes.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", settings.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
