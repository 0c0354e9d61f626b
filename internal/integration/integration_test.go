package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
	pginfra "trivia-quiz-service/internal/infra/postgres"
	pgmigrations "trivia-quiz-service/internal/infra/postgres/migrations"
	infraredis "trivia-quiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuizFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL, sampleBank())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	bank := memory.NewBank(pginfra.NewBankLoader(pool), 5*time.Minute)
	source := app.NewSource(nil, bank)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()
	ledger := app.NewLedger(infraredis.NewLedgerStore(redisClient, time.Hour))

	policy := app.Policy{
		domain.DifficultyEasy:   {Difficulty: domain.DifficultyEasy, QuestionCount: 2, TimeLimitSeconds: 30},
		domain.DifficultyMedium: {Difficulty: domain.DifficultyMedium, QuestionCount: 2, TimeLimitSeconds: 30},
	}
	service := app.NewQuizService(source, ledger, policy, nil)
	defer service.CloseSession("player-1")

	session, err := service.StartSession(ctx, "player-1", domain.DifficultyEasy, "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	snapshot := session.Snapshot()
	if snapshot.Phase != app.PhaseActive || snapshot.QuestionCount != 2 {
		t.Fatalf("expected 2 postgres-backed questions, got %+v", snapshot)
	}

	outcomeQuestions, err := answerAllCorrectly(service, session)
	if err != nil {
		t.Fatalf("play through: %v", err)
	}

	report, err := service.Finish(ctx, "player-1")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if report.Score.BaseScore != len(outcomeQuestions) {
		t.Fatalf("expected all answers correct, got %d/%d", report.Score.BaseScore, len(outcomeQuestions))
	}
	if !report.IsNewHighScore {
		t.Fatalf("expected the run recorded as a high score")
	}

	// The ledger survives the service: a fresh read hits Redis directly.
	rereads := app.NewLedger(infraredis.NewLedgerStore(redisClient, time.Hour))
	entries, err := rereads.Entries(ctx)
	if err != nil {
		t.Fatalf("reread entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Total != 2 {
		t.Fatalf("expected the persisted entry, got %+v", entries)
	}

	if err := service.ClearHighScores(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ = rereads.Entries(ctx)
	if len(entries) != 0 {
		t.Fatalf("expected cleared ledger, got %+v", entries)
	}
}

func answerAllCorrectly(service *app.QuizService, session *app.Session) ([]domain.Question, error) {
	var played []domain.Question
	for {
		snapshot := session.Snapshot()
		if snapshot.Phase != app.PhaseActive {
			return played, nil
		}
		question := snapshot.Question
		if err := service.SubmitAnswer("player-1", question.ID, question.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("answer %s: %w", question.ID, err)
		}
		played = append(played, *question)
		if err := service.Advance("player-1"); err != nil {
			return nil, fmt.Errorf("advance past %s: %w", question.ID, err)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestions(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			t.Fatalf("marshal question %s: %v", q.ID, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO questions (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, q.ID, string(data)); err != nil {
			t.Fatalf("insert question %s: %v", q.ID, err)
		}
	}
}

func sampleBank() []domain.Question {
	return []domain.Question{
		{ID: "pg-1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectAnswer: 1, Difficulty: domain.DifficultyEasy, Category: "Math"},
		{ID: "pg-2", Text: "What color is the sky on a clear day?", Options: []string{"Green", "Red", "Blue", "Yellow"}, CorrectAnswer: 2, Difficulty: domain.DifficultyEasy, Category: "Nature"},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
