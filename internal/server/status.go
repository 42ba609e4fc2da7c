package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/config"
	"github.com/hyperjump/saiyo/internal/indexer"
	"github.com/hyperjump/saiyo/internal/keyword"
	"github.com/hyperjump/saiyo/internal/models"
	"github.com/hyperjump/saiyo/internal/storage"
	"github.com/hyperjump/saiyo/pkg/utils"
)

// CollectStatus gathers index occupancy, store counts and disk usage. dir may be nil.
// The CLI uses it directly when no server is running.
func CollectStatus(ctx context.Context, m *indexer.Manager, store storage.Storage, dir keyword.Directory, cfg *config.Config) (*models.Status, error) {
	stats := m.Stats()
	profiles, err := store.CountProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("count profiles: %w", err)
	}
	st := &models.Status{
		Candidates:        stats.Candidates,
		LiveEntries:       stats.Live,
		TombstonedEntries: stats.Tombstoned,
		Dimensions:        stats.Dimensions,
		Profiles:          profiles,
		WeightsVersion:    cfg.Search.WeightsVersion,
		MatchMode:         cfg.Search.MatchMode,
		EmbeddingProvider: cfg.Embedding.Provider,
		IndexPath:         cfg.Storage.IndexPath,
		DatabasePath:      cfg.Storage.DatabasePath,
	}
	if dir != nil {
		if n, err := dir.DocCount(); err == nil {
			st.DirectoryDocs = n
		} else {
			utils.LoggerFromContext(ctx).Warn("directory count failed", zap.String("stage", "status"), zap.Error(err))
		}
	}
	if disk, err := storage.DiskUsageBytes(storagePatterns(cfg.Storage)...); err == nil {
		st.DiskUsageBytes = &disk
	}
	return st, nil
}

// storagePatterns covers the database with its WAL files, both index files and the directory.
func storagePatterns(s config.StorageConfig) []string {
	var out []string
	if s.DatabasePath != "" {
		out = append(out, s.DatabasePath+"*")
	}
	if s.IndexPath != "" {
		out = append(out, s.IndexPath+".vec", s.IndexPath+".ids")
	}
	if s.DirectoryPath != "" {
		out = append(out, s.DirectoryPath)
	}
	return out
}
