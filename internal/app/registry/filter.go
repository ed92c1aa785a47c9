package registry

import (
	"sort"
	"strings"

	"toolshelf/internal/domain"
	"toolshelf/internal/infra/search"
)

// SortKey selects the ordering applied by GetFiltered.
type SortKey string

const (
	SortByName    SortKey = "name"    // lexicographic name
	SortByUsage   SortKey = "usage"   // descending usage count
	SortByRecent  SortKey = "recent"  // descending last-used, never-used last
	SortByCreated SortKey = "created" // descending creation time
	// SortByRelevance keeps the ranking engine's order and is only
	// meaningful together with Fuzzy.
	SortByRelevance SortKey = "relevance"
)

// FilterOptions drives GetFiltered. The zero value means: all categories, no
// query, natural order.
type FilterOptions struct {
	Category       domain.Category // empty matches every category
	Query          string
	Fuzzy          bool
	FavoritesFirst bool
	SortBy         SortKey
}

// Search performs an exact, case-insensitive substring match across name,
// description and tags, in the collection's insertion order. An empty query
// returns the whole collection.
func (r *Registry) Search(query string) ([]domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized {
		return nil, domain.ErrNotInitialized
	}
	return substringFilter(r.snapshotLocked(), query), nil
}

// GetFiltered is the composition point for the launcher's list views:
// category filter, exact or fuzzy query, sort, and a final stable
// favorites-first partition. All sorts are stable so equal keys keep their
// relative order and output is deterministic.
func (r *Registry) GetFiltered(opts FilterOptions) ([]domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized {
		return nil, domain.ErrNotInitialized
	}

	tools := r.snapshotLocked()
	if opts.Category != "" {
		filtered := tools[:0]
		for _, tool := range tools {
			if tool.Category == opts.Category {
				filtered = append(filtered, tool)
			}
		}
		tools = filtered
	}

	if strings.TrimSpace(opts.Query) != "" {
		if opts.Fuzzy {
			matches := search.Rank(opts.Query, tools)
			tools = make([]domain.Tool, len(matches))
			for i, match := range matches {
				tools[i] = match.Tool
			}
		} else {
			tools = substringFilter(tools, opts.Query)
		}
	}

	sortTools(tools, opts.SortBy)

	// The partition runs last so favorites stay ahead of non-favorites
	// regardless of the sort key; within each group the sorted order holds.
	if opts.FavoritesFirst {
		sort.SliceStable(tools, func(i, j int) bool {
			return tools[i].IsFavorite && !tools[j].IsFavorite
		})
	}
	return tools, nil
}

func substringFilter(tools []domain.Tool, query string) []domain.Tool {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return tools
	}
	matched := tools[:0]
	for _, tool := range tools {
		if matchesSubstring(tool, needle) {
			matched = append(matched, tool)
		}
	}
	return matched
}

func matchesSubstring(tool domain.Tool, needle string) bool {
	if strings.Contains(strings.ToLower(tool.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(tool.Description), needle) {
		return true
	}
	for _, tag := range tool.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func sortTools(tools []domain.Tool, key SortKey) {
	switch key {
	case SortByName:
		sort.SliceStable(tools, func(i, j int) bool {
			return tools[i].Name < tools[j].Name
		})
	case SortByUsage:
		sort.SliceStable(tools, func(i, j int) bool {
			return tools[i].UsageCount > tools[j].UsageCount
		})
	case SortByRecent:
		sort.SliceStable(tools, func(i, j int) bool {
			if tools[i].LastUsed.IsZero() != tools[j].LastUsed.IsZero() {
				return !tools[i].LastUsed.IsZero()
			}
			return tools[i].LastUsed.After(tools[j].LastUsed)
		})
	case SortByCreated:
		sort.SliceStable(tools, func(i, j int) bool {
			return tools[i].CreatedAt.After(tools[j].CreatedAt)
		})
	case SortByRelevance, "":
		// Relevance preserves the ranking engine's order; the empty key
		// preserves natural order. Nothing to re-sort.
	}
}
