//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/facecheck/internal/config"
	"github.com/kozaktomas/facecheck/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return pool, cleanup
}

func vectorOf(v float32) []float32 {
	vec := make([]float32, 128)
	for i := range vec {
		vec[i] = v
	}
	return vec
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied() error: %v", err)
	}
	if len(versions) == 0 || versions[0] != "001_match_events.sql" {
		t.Errorf("unexpected migrations %v", versions)
	}

	// Applying again is a no-op.
	if err := pool.Migrate(ctx); err != nil {
		t.Errorf("second Migrate() error: %v", err)
	}
}

func TestHistoryRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewHistoryRepository(pool)

	t.Run("RecordAndRecent", func(t *testing.T) {
		first := database.NewMatchEvent(true, "person 1", 0.21, 2, 1, vectorOf(0.1))
		second := database.NewMatchEvent(false, "", 0, 2, 1, nil)
		second.At = first.At.Add(time.Second)

		for _, e := range []database.MatchEvent{first, second} {
			if err := repo.Record(ctx, e); err != nil {
				t.Fatalf("Record() error: %v", err)
			}
		}

		events, err := repo.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent() error: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].ID != second.ID {
			t.Errorf("expected newest first, got %s", events[0].ID)
		}
		if events[0].Descriptor != nil {
			t.Error("expected nil descriptor for a no-face event")
		}
		if events[1].Label != "person 1" || len(events[1].Descriptor) != 128 {
			t.Errorf("unexpected stored event %+v", events[1])
		}

		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Count() error: %v", err)
		}
		if count != 2 {
			t.Errorf("Count() = %d, want 2", count)
		}
	})

	t.Run("FindSimilar", func(t *testing.T) {
		far := database.NewMatchEvent(true, "person 2", 0.3, 2, 2, vectorOf(0.9))
		if err := repo.Record(ctx, far); err != nil {
			t.Fatalf("Record() error: %v", err)
		}

		events, distances, err := repo.FindSimilar(ctx, vectorOf(0.1), 5, 0.6)
		if err != nil {
			t.Fatalf("FindSimilar() error: %v", err)
		}
		if len(events) != 1 || events[0].Label != "person 1" {
			t.Fatalf("expected only the near event, got %+v", events)
		}
		if distances[0] > 1e-3 {
			t.Errorf("distance = %v, want ~0", distances[0])
		}
	})
}

func TestProviderRegistration(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	database.RegisterPostgresBackend(func() database.HistoryRepository { return NewHistoryRepository(pool) })
	defer database.ResetBackend()

	w, err := database.GetHistoryWriter(context.Background())
	if err != nil {
		t.Fatalf("GetHistoryWriter() error: %v", err)
	}
	if err := w.Record(context.Background(), database.NewMatchEvent(false, "unknown", 1.2, 1, 1, vectorOf(0.5))); err != nil {
		t.Errorf("Record() via provider error: %v", err)
	}
}
