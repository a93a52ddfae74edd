package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Veraticus/kvlabel/internal/config"
	"github.com/Veraticus/kvlabel/internal/consensus"
	"github.com/Veraticus/kvlabel/internal/storage"
)

func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return settings, nil
}

// initStorage opens the database and applies migrations.
func initStorage(ctx context.Context, settings *config.Settings) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(settings.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

func loadVocabulary(settings *config.Settings) (*consensus.Vocabulary, error) {
	if settings.VocabularyPath == "" {
		return consensus.DefaultVocabulary()
	}
	return consensus.LoadVocabularyFile(settings.VocabularyPath)
}
