// Package indexer keeps the vector index, the profile store and the candidate directory in step.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/aspect"
	"github.com/hyperjump/saiyo/internal/keyword"
	"github.com/hyperjump/saiyo/internal/metrics"
	"github.com/hyperjump/saiyo/internal/profile"
	"github.com/hyperjump/saiyo/internal/storage"
	"github.com/hyperjump/saiyo/internal/vector"
)

// ErrInvalidCandidate is returned when a candidate has no identity.
var ErrInvalidCandidate = errors.New("invalid candidate")

// BatchEmbedder embeds several texts, returning vectors in input order. embedding.Provider implements it.
type BatchEmbedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Manager indexes candidates. Writers are serialized so every mutation is followed by its own save.
type Manager struct {
	index     vector.Index
	indexPath string
	embedder  BatchEmbedder
	table     aspect.WeightTable
	store     storage.Storage
	directory keyword.Directory
	logger    *zap.Logger
	mu        sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDirectory keeps a candidate directory in sync with indexing. Directory failures are logged only.
func WithDirectory(d keyword.Directory) Option {
	return func(m *Manager) { m.directory = d }
}

// WithIndexPath persists the index at path after every mutation. Without it the index stays in memory.
func WithIndexPath(path string) Option {
	return func(m *Manager) { m.indexPath = path }
}

// NewManager creates a Manager that indexes the aspects of table.
func NewManager(index vector.Index, embedder BatchEmbedder, table aspect.WeightTable, store storage.Storage, opts ...Option) *Manager {
	m := &Manager{
		index:    index,
		embedder: embedder,
		table:    table,
		store:    store,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stats returns the index occupancy.
func (m *Manager) Stats() vector.Stats {
	return m.index.Stats()
}

// IndexCandidate embeds one text per aspect of the table and replaces identity's entries with them.
// A missing or blank text is indexed as profile.NotSpecified. The index is saved afterwards.
func (m *Manager) IndexCandidate(ctx context.Context, identity string, texts map[aspect.Aspect]string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	positions, err := m.indexCandidateLocked(ctx, identity, texts)
	if err != nil {
		return nil, err
	}
	if err := m.saveLocked(); err != nil {
		return positions, err
	}
	return positions, nil
}

func (m *Manager) indexCandidateLocked(ctx context.Context, identity string, texts map[aspect.Aspect]string) ([]int, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, fmt.Errorf("%w: identity is required", ErrInvalidCandidate)
	}
	aspects := m.table.Aspects()
	inputs := make([]string, len(aspects))
	for i, a := range aspects {
		text := strings.TrimSpace(texts[a])
		if text == "" {
			text = profile.NotSpecified
		}
		inputs[i] = text
	}

	vecs, err := m.embedder.EmbedMany(ctx, inputs)
	if err != nil {
		m.logger.Error("embedding candidate failed",
			zap.String("stage", "embed"), zap.String("identity", identity), zap.Error(err))
		return nil, fmt.Errorf("embed %s: %w", identity, err)
	}
	vectors := make([]vector.AspectVector, len(aspects))
	for i, a := range aspects {
		vectors[i] = vector.AspectVector{Aspect: a, Vector: vecs[i]}
	}
	positions, err := m.index.Replace(ctx, identity, vectors)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", identity, err)
	}
	m.logger.Debug("candidate indexed",
		zap.String("stage", "index"), zap.String("identity", identity), zap.Ints("positions", positions))
	return positions, nil
}

// IndexProfile stores p, refreshes its directory entry and indexes its aspect texts.
func (m *Manager) IndexProfile(ctx context.Context, p *profile.Profile) ([]int, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := m.store.UpsertProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("store profile: %w", err)
	}
	m.indexDirectory(ctx, p)
	return m.IndexCandidate(ctx, p.Identity, p.AspectTexts(m.table.Aspects()))
}

func (m *Manager) indexDirectory(ctx context.Context, p *profile.Profile) {
	if m.directory == nil {
		return
	}
	if err := m.directory.Index(ctx, p); err != nil {
		m.logger.Warn("directory update failed",
			zap.String("stage", "directory"), zap.String("identity", p.Identity), zap.Error(err))
	}
}

// RemoveCandidate drops identity from the index, the store and the directory.
// It returns storage.ErrProfileNotFound when identity was known to neither the index nor the store.
func (m *Manager) RemoveCandidate(ctx context.Context, identity string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed, err := m.index.Remove(ctx, identity)
	if err != nil {
		return 0, err
	}
	if err := m.saveLocked(); err != nil {
		return removed, err
	}
	if m.directory != nil {
		if err := m.directory.Delete(ctx, identity); err != nil {
			m.logger.Warn("directory delete failed",
				zap.String("stage", "directory"), zap.String("identity", identity), zap.Error(err))
		}
	}
	err = m.store.DeleteProfile(ctx, identity)
	if errors.Is(err, storage.ErrProfileNotFound) && removed > 0 {
		err = nil
	}
	if err != nil {
		return removed, err
	}
	m.logger.Debug("candidate removed",
		zap.String("stage", "remove"), zap.String("identity", identity), zap.Int("entries", removed))
	return removed, nil
}

// BootstrapFailure records a profile that could not be indexed.
type BootstrapFailure struct {
	Identity string `json:"identity"`
	Error    string `json:"error"`
}

// BootstrapReport summarizes a full rebuild.
type BootstrapReport struct {
	Indexed  int                `json:"indexed"`
	Failed   []BootstrapFailure `json:"failed,omitempty"`
	Live     int                `json:"live"`
	Duration time.Duration      `json:"duration_ns"`
}

// Bootstrap resets the index and indexes profiles one by one, saving once at the end.
// A failing profile is logged and reported without stopping the run; a cancelled context stops it.
// Profiles are not written to the store.
func (m *Manager) Bootstrap(ctx context.Context, profiles []*profile.Profile) (*BootstrapReport, error) {
	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.index.Reset()
	report := &BootstrapReport{}
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		p.Normalize()
		err := p.Validate()
		if err == nil {
			_, err = m.indexCandidateLocked(ctx, p.Identity, p.AspectTexts(m.table.Aspects()))
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.Duration = time.Since(start)
				return report, ctxErr
			}
			m.logger.Warn("bootstrap skipped profile",
				zap.String("stage", "bootstrap"), zap.String("identity", p.Identity), zap.Error(err))
			report.Failed = append(report.Failed, BootstrapFailure{Identity: p.Identity, Error: err.Error()})
			continue
		}
		m.indexDirectory(ctx, p)
		report.Indexed++
	}
	if err := m.saveLocked(); err != nil {
		return report, err
	}
	report.Live = m.index.Size()
	report.Duration = time.Since(start)
	m.logger.Info("bootstrap complete",
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// Rebuild bootstraps the index from every profile in the store.
func (m *Manager) Rebuild(ctx context.Context) (*BootstrapReport, error) {
	profiles, err := m.store.ListProfiles(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return m.Bootstrap(ctx, profiles)
}

// Restore loads the persisted index. When the files are unreadable, or the index is empty while
// the store still holds profiles, the index is rebuilt from the store.
func (m *Manager) Restore(ctx context.Context) error {
	if m.indexPath != "" {
		if err := m.index.Load(m.indexPath); err != nil {
			m.logger.Warn("index load failed, rebuilding from profile store",
				zap.String("stage", "load"), zap.String("path", m.indexPath), zap.Error(err))
			_, err := m.Rebuild(ctx)
			return err
		}
	}
	m.publish()
	if m.index.Size() > 0 {
		return nil
	}
	count, err := m.store.CountProfiles(ctx)
	if err != nil {
		return fmt.Errorf("count profiles: %w", err)
	}
	if count == 0 {
		return nil
	}
	m.logger.Info("index empty, rebuilding from profile store", zap.Int64("profiles", count))
	_, err = m.Rebuild(ctx)
	return err
}

// Save persists the index, if it has a path.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	defer m.publish()
	if m.indexPath == "" {
		return nil
	}
	if err := m.index.Save(m.indexPath); err != nil {
		m.logger.Error("index save failed",
			zap.String("stage", "persist"), zap.String("path", m.indexPath), zap.Error(err))
		return err
	}
	return nil
}

func (m *Manager) publish() {
	s := m.index.Stats()
	metrics.SetIndexEntries(s.Live, s.Tombstoned)
}

// IndexFile loads the profiles in a YAML or JSON file and indexes each one.
// It returns the identities indexed.
func (m *Manager) IndexFile(ctx context.Context, path string) ([]string, error) {
	if !profile.IsProfileFile(path) {
		return nil, fmt.Errorf("extension %q is not a profile format", filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	profiles, err := profile.LoadFile(path)
	if err != nil {
		return nil, err
	}
	identities := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if _, err := m.IndexProfile(ctx, p); err != nil {
			return identities, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		identities = append(identities, p.Identity)
	}
	m.logger.Debug("profile file indexed", zap.String("path", path), zap.Strings("identities", identities))
	return identities, nil
}

// IndexDirectory walks dir recursively and indexes every profile file.
// It returns the number of files indexed and stops at the first error.
func (m *Manager) IndexDirectory(ctx context.Context, dir string) (n int, err error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", dir)
	}
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !profile.IsProfileFile(path) {
			return nil
		}
		if _, indexErr := m.IndexFile(ctx, path); indexErr != nil {
			return indexErr
		}
		n++
		return nil
	})
	return n, err
}
