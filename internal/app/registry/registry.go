// Package registry owns the in-memory authoritative set of tools and
// composes persistence, usage tracking, validation and the ranking engine
// into the operations the launcher UI consumes. A Registry is an explicitly
// constructed instance; all mutation goes through its named operations and
// every query hands out clones, so callers can never corrupt registry state
// through a returned reference.
package registry

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"toolshelf/internal/domain"
	"toolshelf/internal/infra/search"
	"toolshelf/internal/infra/store"
	"toolshelf/internal/infra/validate"
)

type Registry struct {
	mu          sync.RWMutex
	store       *store.Store
	logger      *zap.Logger
	initialized bool

	tools map[string]domain.Tool
	order []string // insertion order of ids
}

func New(st *store.Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:  st,
		logger: logger.Named("registry"),
		tools:  make(map[string]domain.Tool),
	}
}

// Initialize loads the persisted collection, merges in any defaults not
// already present by id, reconciles usage counters from the tracker, and
// persists the merged result. It is idempotent; calls after the first are
// no-ops. Every other operation fails with ErrNotInitialized until this has
// run, so an uninitialized registry never masquerades as an empty one.
func (r *Registry) Initialize(defaults []domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}

	persisted, err := r.store.LoadTools()
	if err != nil {
		// Durability is degraded but the session keeps working.
		r.logger.Warn("load persisted tools failed; starting from defaults", zap.Error(err))
		persisted = nil
	}

	paths := make(map[string]string)
	for _, tool := range persisted {
		if _, exists := r.tools[tool.ID]; exists {
			r.logger.Warn("skip persisted tool with duplicate id", zap.String("id", tool.ID))
			continue
		}
		if owner, exists := paths[tool.Path]; exists {
			r.logger.Warn("skip persisted tool with duplicate path",
				zap.String("id", tool.ID), zap.String("path", tool.Path), zap.String("owner", owner))
			continue
		}
		r.tools[tool.ID] = tool
		r.order = append(r.order, tool.ID)
		paths[tool.Path] = tool.ID
	}

	now := time.Now()
	for _, def := range defaults {
		if _, exists := r.tools[def.ID]; exists {
			continue
		}
		if errs := validate.Tool(def); len(errs) > 0 {
			r.logger.Warn("skip invalid default tool", zap.String("id", def.ID), zap.Strings("violations", errs))
			continue
		}
		if owner, exists := paths[def.Path]; exists {
			r.logger.Warn("skip default tool with conflicting path",
				zap.String("id", def.ID), zap.String("path", def.Path), zap.String("owner", owner))
			continue
		}
		tool := domain.CloneTool(def)
		tool.UsageCount = 0
		tool.LastUsed = time.Time{}
		if tool.CreatedAt.IsZero() {
			tool.CreatedAt = now
		}
		r.tools[tool.ID] = tool
		r.order = append(r.order, tool.ID)
		paths[tool.Path] = tool.ID
	}

	r.reconcileUsageLocked()
	r.persistLocked()
	r.initialized = true
	return nil
}

// reconcileUsageLocked overwrites the cached counters on each tool record
// from the usage tracker, which is the source of truth for usage statistics.
func (r *Registry) reconcileUsageLocked() {
	usage, err := r.store.Usage()
	if err != nil {
		r.logger.Warn("load usage counters failed; keeping cached values", zap.Error(err))
		return
	}
	for id, record := range usage {
		tool, ok := r.tools[id]
		if !ok {
			continue
		}
		tool.UsageCount = record.UsageCount
		if record.UsageCount > 0 {
			tool.LastUsed = record.LastUsed
		} else {
			tool.LastUsed = time.Time{}
		}
		r.tools[id] = tool
	}
}

// persistLocked writes the full collection through the store. Failure is
// non-fatal: the in-memory state stays authoritative and the next mutation
// retries the write.
func (r *Registry) persistLocked() {
	if err := r.store.SaveTools(r.snapshotLocked()); err != nil {
		r.logger.Warn("persist tools failed; in-memory state remains authoritative", zap.Error(err))
	}
}

// Flush re-saves the collection and surfaces the store error, for callers
// that want to confirm durability explicitly.
func (r *Registry) Flush() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized {
		return domain.ErrNotInitialized
	}
	return r.store.SaveTools(r.snapshotLocked())
}

func (r *Registry) snapshotLocked() []domain.Tool {
	tools := make([]domain.Tool, 0, len(r.order))
	for _, id := range r.order {
		tools = append(tools, domain.CloneTool(r.tools[id]))
	}
	return tools
}

// GetAll returns every tool in insertion order.
func (r *Registry) GetAll() ([]domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized {
		return nil, domain.ErrNotInitialized
	}
	return r.snapshotLocked(), nil
}

func (r *Registry) Get(id string) (domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized {
		return domain.Tool{}, domain.ErrNotInitialized
	}
	tool, ok := r.tools[id]
	if !ok {
		return domain.Tool{}, domain.ErrToolNotFound
	}
	return domain.CloneTool(tool), nil
}

// AddTool validates the candidate, rejects duplicate ids and paths, fills
// the generated fields (zero usage, creation time) and persists the result.
// All violations are accumulated into one ValidationError.
func (r *Registry) AddTool(candidate domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return domain.ErrNotInitialized
	}

	errs := validate.Tool(candidate)
	if _, exists := r.tools[candidate.ID]; exists {
		errs = append(errs, fmt.Sprintf("id %q already exists", candidate.ID))
	}
	if owner, exists := r.pathOwnerLocked(candidate.Path); exists {
		errs = append(errs, fmt.Sprintf("path %q already in use by %q", candidate.Path, owner))
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Violations: errs}
	}

	tool := domain.CloneTool(candidate)
	tool.UsageCount = 0
	tool.LastUsed = time.Time{}
	tool.CreatedAt = time.Now()
	r.tools[tool.ID] = tool
	r.order = append(r.order, tool.ID)
	r.persistLocked()
	return nil
}

// UpdateTool merges the patch into the stored record, re-validates the
// merged result and rejects a path change that collides with another tool.
func (r *Registry) UpdateTool(id string, patch domain.ToolPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return domain.ErrNotInitialized
	}
	current, ok := r.tools[id]
	if !ok {
		return domain.ErrToolNotFound
	}

	merged := applyPatch(current, patch)
	errs := validate.Tool(merged)
	if owner, exists := r.pathOwnerLocked(merged.Path); exists && owner != id {
		errs = append(errs, fmt.Sprintf("path %q already in use by %q", merged.Path, owner))
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Violations: errs}
	}

	r.tools[id] = merged
	r.persistLocked()
	return nil
}

func applyPatch(tool domain.Tool, patch domain.ToolPatch) domain.Tool {
	merged := domain.CloneTool(tool)
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.Category != nil {
		merged.Category = *patch.Category
	}
	if patch.Icon != nil {
		merged.Icon = *patch.Icon
	}
	if patch.Path != nil {
		merged.Path = *patch.Path
	}
	if patch.Preview != nil {
		merged.Preview = *patch.Preview
	}
	if patch.Tags != nil {
		merged.Tags = append([]string(nil), (*patch.Tags)...)
	}
	if patch.Version != nil {
		merged.Version = *patch.Version
	}
	if patch.IsEnabled != nil {
		merged.IsEnabled = *patch.IsEnabled
	}
	return merged
}

// RemoveTool deletes the record and persists the removal. Usage history is
// left in place; ClearUsage is the explicit path for dropping counters.
func (r *Registry) RemoveTool(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return domain.ErrNotInitialized
	}
	if _, ok := r.tools[id]; !ok {
		return domain.ErrToolNotFound
	}
	delete(r.tools, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.persistLocked()
	return nil
}

func (r *Registry) ToggleFavorite(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return domain.ErrNotInitialized
	}
	tool, ok := r.tools[id]
	if !ok {
		return domain.ErrToolNotFound
	}
	tool.IsFavorite = !tool.IsFavorite
	r.tools[id] = tool
	r.persistLocked()
	return nil
}

// RecordUsage increments the in-memory counter and forwards to the usage
// tracker. This is the hot path (every tool open), so it writes exactly one
// usage record and never re-serializes the collection; the persisted tool
// cache catches up on the next collection write or the next initialize.
func (r *Registry) RecordUsage(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return domain.ErrNotInitialized
	}
	tool, ok := r.tools[id]
	if !ok {
		return domain.ErrToolNotFound
	}

	record, err := r.store.RecordUse(id)
	if err != nil {
		r.logger.Warn("record use failed; counting in memory only",
			zap.String("id", id), zap.Error(err))
		record = domain.UsageRecord{UsageCount: tool.UsageCount + 1, LastUsed: time.Now()}
	}
	tool.UsageCount = record.UsageCount
	tool.LastUsed = record.LastUsed
	r.tools[id] = tool
	return nil
}

// ClearUsage resets every counter, durably and in memory. Tool metadata is
// untouched.
func (r *Registry) ClearUsage() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return domain.ErrNotInitialized
	}
	if err := r.store.ClearUsage(); err != nil {
		r.logger.Warn("clear usage counters failed; resetting in memory only", zap.Error(err))
	}
	for id, tool := range r.tools {
		tool.UsageCount = 0
		tool.LastUsed = time.Time{}
		r.tools[id] = tool
	}
	r.persistLocked()
	return nil
}

func (r *Registry) pathOwnerLocked(path string) (string, bool) {
	for _, id := range r.order {
		if r.tools[id].Path == path {
			return id, true
		}
	}
	return "", false
}

// FuzzySearch delegates to the ranking engine over the current collection.
func (r *Registry) FuzzySearch(query string) ([]search.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized {
		return nil, domain.ErrNotInitialized
	}
	return search.Rank(query, r.snapshotLocked()), nil
}
