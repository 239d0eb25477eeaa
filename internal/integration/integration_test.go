package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-duel-service/internal/domain"
	pgstore "quiz-duel-service/internal/infra/postgres"
	pgmigrations "quiz-duel-service/internal/infra/postgres/migrations"
	infraredis "quiz-duel-service/internal/infra/redis"
)

func TestQuestionPoolEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgstore.NewQuestionLoader(pool)
	bank := infraredis.NewQuestionBank(redisClient, loader, 5*time.Minute)

	// first draw loads the seeded pool through postgres and caches it
	q, err := bank.Draw(ctx)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if q.Text == "" || len(q.Options) != 4 {
		t.Fatalf("unexpected question %+v", q)
	}
	if exists := redisClient.Exists(ctx, "duel:questions").Val(); exists != 1 {
		t.Fatalf("expected question pool cached in redis")
	}

	// subsequent draws are served from the cache
	if _, err := bank.Draw(ctx); err != nil {
		t.Fatalf("cached draw: %v", err)
	}
}

func TestMatchPersistenceEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	recorder := pgstore.NewRecorder(pool)

	finished := time.Now().UTC().Truncate(time.Second)
	rec := domain.MatchRecord{
		RoomID:       "room-abc",
		Player1ID:    "p1",
		Player1Name:  "Alice",
		Player2ID:    "p2",
		Player2Name:  "Bob",
		Player1Score: 7,
		Player2Score: 3,
		WinnerName:   "Alice",
		FinishedAt:   finished,
	}
	if err := recorder.RecordMatch(ctx, rec); err != nil {
		t.Fatalf("record match: %v", err)
	}
	// replays of the same room are absorbed, not duplicated
	if err := recorder.RecordMatch(ctx, rec); err != nil {
		t.Fatalf("record match twice: %v", err)
	}

	history, err := recorder.MatchHistory(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one match, got %d", len(history))
	}
	got := history[0]
	if got.WinnerName != "Alice" || got.Player1Score != 7 || got.Player2Score != 3 {
		t.Fatalf("unexpected match record %+v", got)
	}

	for i := 0; i < 3; i++ {
		visit := domain.Visit{IP: "10.0.0.1", UserAgent: "test", Path: "/", At: finished}
		if err := recorder.RecordVisit(ctx, visit); err != nil {
			t.Fatalf("record visit: %v", err)
		}
	}
	stats, err := recorder.VisitStats(ctx, 7)
	if err != nil {
		t.Fatalf("visit stats: %v", err)
	}
	if len(stats) != 1 || stats[0].Total != 3 {
		t.Fatalf("unexpected visit stats %+v", stats)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "duel", "POSTGRES_PASSWORD": "duelpass", "POSTGRES_DB": "dueldb"},
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
	dsn := fmt.Sprintf("postgres://duel:duelpass@%s:%s/dueldb?sslmode=disable", host, port.Port())
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

// runMigrations applies the embedded migrations, which also seed the
// built-in question pool.
func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
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
