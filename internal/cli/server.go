package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
	pgbank "trivia-quiz-service/internal/infra/postgres"
	redisledger "trivia-quiz-service/internal/infra/redis"
	"trivia-quiz-service/internal/infra/trivia"
	transport "trivia-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(memory.BundledQuestions())
	if pool != nil {
		loader = pgbank.NewBankLoader(pool)
	}
	bankTTL := config.TTLDuration(cfg.Quiz.BankTTL, 10*time.Minute)
	bank := memory.NewBank(loader, bankTTL)

	clientOpts := []trivia.Option{
		trivia.WithTimeout(config.TTLDuration(cfg.Trivia.Timeout, 10*time.Second)),
	}
	if cfg.Trivia.BaseURL != "" {
		clientOpts = append(clientOpts, trivia.WithBaseURL(cfg.Trivia.BaseURL))
	}
	source := app.NewSource(trivia.NewClient(clientOpts...), bank)

	var store app.LedgerStore
	if redisClient != nil {
		redisTTL := config.TTLDuration(cfg.Redis.TTL, 0)
		store = redisledger.NewLedgerStore(redisClient, redisTTL)
	} else {
		store = memory.NewLedgerStore()
	}
	ledger := app.NewLedger(store)

	service := app.NewQuizService(source, ledger, policyFromConfig(cfg), nil)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// policyFromConfig builds the difficulty table from YAML, falling back to the
// defaults for rows that are absent or incomplete.
func policyFromConfig(cfg config.Config) app.Policy {
	policy := app.DefaultPolicy()
	for raw, row := range cfg.Quiz.Policy {
		if row.Questions <= 0 || row.TimeLimit <= 0 {
			continue
		}
		difficulty := domain.ParseDifficulty(raw)
		policy[difficulty] = domain.SessionConfig{
			Difficulty:       difficulty,
			QuestionCount:    row.Questions,
			TimeLimitSeconds: row.TimeLimit,
		}
	}
	return policy
}
