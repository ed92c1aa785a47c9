package domain

import "time"

// Category classifies a tool for filtering. The set is closed; records with
// an unknown category are rejected at validation time.
type Category string

const (
	CategoryProductivity  Category = "productivity"
	CategoryDevelopment   Category = "development"
	CategoryDesign        Category = "design"
	CategoryUtilities     Category = "utilities"
	CategoryCommunication Category = "communication"
	CategoryFinance       Category = "finance"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryProductivity,
	CategoryDevelopment,
	CategoryDesign,
	CategoryUtilities,
	CategoryCommunication,
	CategoryFinance,
}

// IsValidCategory reports whether c is a member of the closed category set.
func IsValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Tool is a registered launcher entry. ID is immutable after creation and
// unique across the registry; Path is unique and must begin with RoutePrefix.
// A zero LastUsed means the tool has never been used.
type Tool struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Icon        string    `json:"icon"`
	Path        string    `json:"path"`
	Preview     string    `json:"preview,omitempty"`
	UsageCount  int       `json:"usageCount"`
	LastUsed    time.Time `json:"lastUsed"`
	IsFavorite  bool      `json:"isFavorite"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	Version     string    `json:"version"`
	IsEnabled   bool      `json:"isEnabled"`
}

// ToolPatch carries a partial update for Registry.UpdateTool. Nil fields are
// left unchanged. ID, UsageCount, LastUsed and CreatedAt are not patchable;
// they are owned by the registry.
type ToolPatch struct {
	Name        *string
	Description *string
	Category    *Category
	Icon        *string
	Path        *string
	Preview     *string
	Tags        *[]string
	Version     *string
	IsEnabled   *bool
}

// UsageRecord holds the durable usage counters for one tool id, stored
// independently of the tool record itself.
type UsageRecord struct {
	UsageCount int       `json:"usageCount"`
	LastUsed   time.Time `json:"lastUsed"`
}

// CloneTool returns a deep copy of t. Query operations hand out clones so
// callers cannot corrupt registry state through a returned reference.
func CloneTool(t Tool) Tool {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	return out
}

// CloneTools deep-copies a slice of tools, preserving order.
func CloneTools(tools []Tool) []Tool {
	if tools == nil {
		return nil
	}
	out := make([]Tool, len(tools))
	for i, t := range tools {
		out[i] = CloneTool(t)
	}
	return out
}
