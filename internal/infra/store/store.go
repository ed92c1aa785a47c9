package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"toolshelf/internal/domain"
)

// Store is the durable backing for the tool registry: a bbolt database
// holding the tool collection, the usage counters, and a schema version.
// The tool collection is written as a single unit (replace-on-write); usage
// counters are written per record so recording a use never rewrites the
// collection.
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	logger *zap.Logger
	closed bool
}

// Open opens (or creates) the store at path and ensures the schema is at the
// current version. An empty path resolves to the default location under the
// user config dir. A store written by a newer schema fails closed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = ResolveDefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}
	options := &bolt.Options{Timeout: time.Second}
	base, err := bolt.Open(trimmed, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	if err := ensureSchema(base); err != nil {
		_ = base.Close()
		return nil, err
	}
	return &Store{db: base, path: trimmed, logger: logger.Named("store")}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// LoadTools reads the persisted collection. A missing collection yields an
// empty slice. A record that fails to decode is skipped and logged rather
// than failing the whole load.
func (s *Store) LoadTools() ([]domain.Tool, error) {
	var tools []domain.Tool
	err := s.view(func(tx *bolt.Tx) error {
		bucket, err := toolsBucket(tx)
		if err != nil {
			return err
		}
		byID := make(map[string]domain.Tool)
		if err := bucket.ForEach(func(key, value []byte) error {
			if value == nil {
				return nil
			}
			tool, err := decodeTool(value)
			if err != nil {
				s.logger.Warn("skip corrupt tool record",
					zap.String("id", string(key)), zap.Error(err))
				return nil
			}
			byID[tool.ID] = tool
			return nil
		}); err != nil {
			return err
		}
		tools = orderTools(byID, readToolOrder(tx))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tools, nil
}

// SaveTools overwrites the persisted collection in a single transaction.
// A reader never observes a partially written collection.
func (s *Store) SaveTools(tools []domain.Tool) error {
	encoded := make(map[string][]byte, len(tools))
	order := make([]string, 0, len(tools))
	for _, tool := range tools {
		raw, err := encodeTool(tool)
		if err != nil {
			return fmt.Errorf("encode tool %s: %w", tool.ID, err)
		}
		encoded[tool.ID] = raw
		order = append(order, tool.ID)
	}
	return s.update(func(tx *bolt.Tx) error {
		bucket, err := toolsBucket(tx)
		if err != nil {
			return err
		}
		if err := clearBucket(bucket); err != nil {
			return err
		}
		for id, raw := range encoded {
			if err := bucket.Put([]byte(id), raw); err != nil {
				return fmt.Errorf("write tool %s: %w", id, err)
			}
		}
		return writeToolOrder(tx, order)
	})
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.db.Update(fn)
}

// persistedTool is the wire form of a tool record: timestamps serialized as
// RFC 3339 text, lastUsed null when never used, isEnabled absent meaning
// enabled.
type persistedTool struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Icon        string   `json:"icon"`
	Path        string   `json:"path"`
	Preview     string   `json:"preview,omitempty"`
	UsageCount  int      `json:"usageCount"`
	LastUsed    *string  `json:"lastUsed"`
	IsFavorite  bool     `json:"isFavorite"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"createdAt"`
	Version     string   `json:"version"`
	IsEnabled   *bool    `json:"isEnabled,omitempty"`
}

func encodeTool(tool domain.Tool) ([]byte, error) {
	record := persistedTool{
		ID:          tool.ID,
		Name:        tool.Name,
		Description: tool.Description,
		Category:    string(tool.Category),
		Icon:        tool.Icon,
		Path:        tool.Path,
		Preview:     tool.Preview,
		UsageCount:  tool.UsageCount,
		IsFavorite:  tool.IsFavorite,
		Tags:        tool.Tags,
		CreatedAt:   tool.CreatedAt.UTC().Format(time.RFC3339Nano),
		Version:     tool.Version,
	}
	if !tool.LastUsed.IsZero() {
		stamp := tool.LastUsed.UTC().Format(time.RFC3339Nano)
		record.LastUsed = &stamp
	}
	if !tool.IsEnabled {
		disabled := false
		record.IsEnabled = &disabled
	}
	return json.Marshal(record)
}

func decodeTool(raw []byte) (domain.Tool, error) {
	var record persistedTool
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.Tool{}, err
	}
	if record.ID == "" {
		return domain.Tool{}, fmt.Errorf("record missing id")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, record.CreatedAt)
	if err != nil {
		return domain.Tool{}, fmt.Errorf("parse createdAt: %w", err)
	}
	tool := domain.Tool{
		ID:          record.ID,
		Name:        record.Name,
		Description: record.Description,
		Category:    domain.Category(record.Category),
		Icon:        record.Icon,
		Path:        record.Path,
		Preview:     record.Preview,
		UsageCount:  record.UsageCount,
		IsFavorite:  record.IsFavorite,
		Tags:        record.Tags,
		CreatedAt:   createdAt,
		Version:     record.Version,
		IsEnabled:   record.IsEnabled == nil || *record.IsEnabled,
	}
	if record.LastUsed != nil && *record.LastUsed != "" {
		lastUsed, err := time.Parse(time.RFC3339Nano, *record.LastUsed)
		if err != nil {
			return domain.Tool{}, fmt.Errorf("parse lastUsed: %w", err)
		}
		tool.LastUsed = lastUsed
	}
	return tool, nil
}

// orderTools arranges decoded records into the persisted insertion order.
// Records absent from the order index (for example written by hand) are
// appended sorted by id for determinism.
func orderTools(byID map[string]domain.Tool, order []string) []domain.Tool {
	tools := make([]domain.Tool, 0, len(byID))
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if tool, ok := byID[id]; ok {
			tools = append(tools, tool)
			seen[id] = struct{}{}
		}
	}
	var rest []string
	for id := range byID {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		tools = append(tools, byID[id])
	}
	return tools
}

func clearBucket(bucket *bolt.Bucket) error {
	var keys [][]byte
	if err := bucket.ForEach(func(key, _ []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	}); err != nil {
		return err
	}
	for _, key := range keys {
		if err := bucket.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
