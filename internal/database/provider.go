package database

import (
	"context"
	"errors"
	"sync"
)

// ErrNotInitialized is returned when match history is requested without a database.
var ErrNotInitialized = errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")

var (
	providerMu          sync.RWMutex
	postgresHistory     func() HistoryRepository
	postgresInitialized bool
)

// RegisterPostgresBackend registers the PostgreSQL history constructor.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(history func() HistoryRepository) {
	providerMu.Lock()
	defer providerMu.Unlock()
	postgresHistory = history
	postgresInitialized = history != nil
}

// ResetBackend unregisters the backend.
func ResetBackend() {
	providerMu.Lock()
	defer providerMu.Unlock()
	postgresHistory = nil
	postgresInitialized = false
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return postgresInitialized
}

// GetHistoryWriter returns a HistoryWriter from the PostgreSQL backend
func GetHistoryWriter(ctx context.Context) (HistoryWriter, error) {
	return getHistory(ctx)
}

// GetHistoryReader returns a HistoryReader from the PostgreSQL backend
func GetHistoryReader(ctx context.Context) (HistoryReader, error) {
	return getHistory(ctx)
}

func getHistory(_ context.Context) (HistoryRepository, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if !postgresInitialized || postgresHistory == nil {
		return nil, ErrNotInitialized
	}
	return postgresHistory(), nil
}
