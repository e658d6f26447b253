// Command pact runs the payment-commitment engine: a chat webhook that
// lets groups create commitments, lock funds into escrow and settle them
// at the deadline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/pact/pkg/api"
	"github.com/Mindburn-Labs/pact/pkg/chain"
	"github.com/Mindburn-Labs/pact/pkg/commitment"
	"github.com/Mindburn-Labs/pact/pkg/config"
	"github.com/Mindburn-Labs/pact/pkg/conversation"
	"github.com/Mindburn-Labs/pact/pkg/dispatch"
	"github.com/Mindburn-Labs/pact/pkg/escrow"
	"github.com/Mindburn-Labs/pact/pkg/events"
	"github.com/Mindburn-Labs/pact/pkg/journal"
	"github.com/Mindburn-Labs/pact/pkg/money"
	"github.com/Mindburn-Labs/pact/pkg/observability"
	"github.com/Mindburn-Labs/pact/pkg/reliability"
	"github.com/Mindburn-Labs/pact/pkg/store"
	"github.com/Mindburn-Labs/pact/pkg/sweep"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// backends bundles the persistence interfaces one database can serve.
type backends struct {
	commitments commitment.Store
	lister      sweep.Lister
	scores      reliability.Store
	outbox      events.OutboxStore
}

func run() error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	profile := config.DefaultProfile()
	if cfg.ProfilePath != "" {
		p, err := config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return err
		}
		profile = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry is optional: no endpoint means no export.
	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:  "pact-engine",
		Environment:  "production",
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
		Enabled:      cfg.OTLPEndpoint != "",
		Insecure:     true,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	be, err := openBackends(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	convStore, err := openConversationStore(ctx, cfg.RedisURL, profile.WizardTimeout())
	if err != nil {
		return err
	}

	ledger := chain.NewDevLedger(nil)
	wallets := chain.NewWallets(ledger)
	dir := escrow.NewDirectory(ledger, journal.New(), nil)
	rel := reliability.NewLedger(be.scores, profile.Reliability)
	emitter := events.NewEmitter(be.outbox, nil)

	engine := commitment.NewEngine(be.commitments, dir, ledger, wallets, rel, emitter, nil).
		WithFeeHeadroom(money.FromMicro(profile.Funds.FeeHeadroomMicro))

	conv := conversation.NewManager(convStore, profile.WizardTimeout(), nil)
	dispatcher := dispatch.NewDispatcher(engine, conv, nil)

	sweeper := sweep.New(engine, be.lister, profile.SweepInterval(), nil)
	go sweeper.Run(ctx)

	notifier := events.NewDispatcher(be.outbox, events.NewLogNotifier(nil), time.Second, nil)
	go notifier.Run(ctx)

	limiter := api.NewSenderRateLimiter(profile.RatePerSecond(), profile.RateLimit.Burst)
	srv := api.NewServer(dispatcher, sweeper, limiter, api.NewAdminAuth(cfg.AdminJWTSecret), nil).
		Use(obs.HTTPMiddleware)

	addr := net.JoinHostPort("", cfg.Port)
	return srv.ListenAndServe(ctx, addr)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

// openBackends picks the persistence layer from the database URL: empty
// runs fully in-memory, postgres:// uses Postgres, anything else is
// treated as a SQLite path.
func openBackends(databaseURL string) (*backends, error) {
	switch {
	case databaseURL == "":
		mem := store.NewMemory()
		return &backends{
			commitments: mem,
			lister:      mem,
			scores:      reliability.NewMemoryStore(),
			outbox:      events.NewMemoryOutbox(),
		}, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		pg, err := store.OpenPostgres(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &backends{commitments: pg, lister: pg, scores: pg, outbox: pg}, nil
	default:
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		sq, err := store.OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &backends{commitments: sq, lister: sq, scores: sq, outbox: sq}, nil
	}
}

// openConversationStore uses Redis when configured so wizard state
// survives restarts, in-memory otherwise.
func openConversationStore(ctx context.Context, redisURL string, ttl time.Duration) (conversation.Store, error) {
	if redisURL == "" {
		return conversation.NewMemoryStore(), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return conversation.NewRedisStore(client, ttl), nil
}
