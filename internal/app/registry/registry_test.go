package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolshelf/internal/domain"
	"toolshelf/internal/infra/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tools.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})
	return st
}

func newTestRegistry(t *testing.T, defaults ...domain.Tool) *Registry {
	t.Helper()
	reg := New(openTestStore(t), zap.NewNop())
	require.NoError(t, reg.Initialize(defaults))
	return reg
}

func toolRec(id, name string, category domain.Category) domain.Tool {
	return domain.Tool{
		ID:          id,
		Name:        name,
		Description: "description of " + name,
		Category:    category,
		Icon:        "wrench",
		Path:        domain.RoutePrefix + id,
		Tags:        []string{id},
		Version:     "1.0.0",
		IsEnabled:   true,
	}
}

func ids(tools []domain.Tool) []string {
	out := make([]string, len(tools))
	for i, tool := range tools {
		out[i] = tool.ID
	}
	return out
}

func TestUninitializedFailsFast(t *testing.T) {
	reg := New(openTestStore(t), zap.NewNop())

	_, err := reg.GetAll()
	require.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = reg.Get("anything")
	require.ErrorIs(t, err, domain.ErrNotInitialized)
	require.ErrorIs(t, reg.AddTool(toolRec("a", "A", domain.CategoryUtilities)), domain.ErrNotInitialized)
	require.ErrorIs(t, reg.RemoveTool("a"), domain.ErrNotInitialized)
	require.ErrorIs(t, reg.ToggleFavorite("a"), domain.ErrNotInitialized)
	require.ErrorIs(t, reg.RecordUsage("a"), domain.ErrNotInitialized)
	_, err = reg.Search("a")
	require.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = reg.FuzzySearch("a")
	require.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = reg.GetFiltered(FilterOptions{})
	require.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestInitializeMergesDefaults(t *testing.T) {
	reg := newTestRegistry(t,
		toolRec("color-picker", "Color Picker", domain.CategoryDesign),
		toolRec("unit-converter", "Unit Converter", domain.CategoryUtilities),
	)

	all, err := reg.GetAll()
	require.NoError(t, err)
	require.Equal(t, []string{"color-picker", "unit-converter"}, ids(all))
	require.False(t, all[0].CreatedAt.IsZero())
	require.Zero(t, all[0].UsageCount)
}

func TestInitializeIdempotent(t *testing.T) {
	reg := newTestRegistry(t, toolRec("alpha", "Alpha", domain.CategoryUtilities))

	require.NoError(t, reg.AddTool(toolRec("beta", "Beta", domain.CategoryDesign)))
	// A second call must be a no-op, not a re-merge.
	require.NoError(t, reg.Initialize([]domain.Tool{toolRec("gamma", "Gamma", domain.CategoryFinance)}))

	all, err := reg.GetAll()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta"}, ids(all))
}

func TestInitializeKeepsPersistedAndAddsNewDefaults(t *testing.T) {
	st := openTestStore(t)

	first := New(st, zap.NewNop())
	require.NoError(t, first.Initialize([]domain.Tool{toolRec("alpha", "Alpha", domain.CategoryUtilities)}))
	require.NoError(t, first.ToggleFavorite("alpha"))

	second := New(st, zap.NewNop())
	require.NoError(t, second.Initialize([]domain.Tool{
		toolRec("alpha", "Alpha", domain.CategoryUtilities),
		toolRec("beta", "Beta", domain.CategoryDesign),
	}))

	all, err := second.GetAll()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta"}, ids(all))
	// The persisted record wins over the default with the same id.
	require.True(t, all[0].IsFavorite)
}

func TestAddToolThenGet(t *testing.T) {
	reg := newTestRegistry(t)

	input := toolRec("password-generator", "Password Generator", domain.CategoryUtilities)
	input.UsageCount = 99 // generated fields are not caller-controlled
	input.LastUsed = time.Now()
	require.NoError(t, reg.AddTool(input))

	got, err := reg.Get("password-generator")
	require.NoError(t, err)
	require.Equal(t, input.Name, got.Name)
	require.Equal(t, input.Path, got.Path)
	require.Equal(t, input.Tags, got.Tags)
	require.Zero(t, got.UsageCount)
	require.True(t, got.LastUsed.IsZero())
	require.False(t, got.CreatedAt.IsZero())
}

func TestAddToolAccumulatesViolations(t *testing.T) {
	reg := newTestRegistry(t)

	err := reg.AddTool(domain.Tool{ID: "Bad_Slug", Path: "/elsewhere"})
	require.Error(t, err)
	verr, ok := domain.AsValidationError(err)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(verr.Violations), 5)
}

func TestAddToolRejectsDuplicateIDAndPath(t *testing.T) {
	reg := newTestRegistry(t, toolRec("alpha", "Alpha", domain.CategoryUtilities))

	duplicate := toolRec("alpha", "Alpha Two", domain.CategoryUtilities)
	err := reg.AddTool(duplicate)
	verr, ok := domain.AsValidationError(err)
	require.True(t, ok)
	require.Contains(t, verr.Violations[0], "already exists")

	samePath := toolRec("alpha-two", "Alpha Two", domain.CategoryUtilities)
	samePath.Path = domain.RoutePrefix + "alpha"
	err = reg.AddTool(samePath)
	verr, ok = domain.AsValidationError(err)
	require.True(t, ok)
	require.Contains(t, verr.Violations[0], "already in use")

	// The collection is unchanged after both rejections.
	all, err := reg.GetAll()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha"}, ids(all))
	require.Equal(t, "Alpha", all[0].Name)
}

func TestUpdateTool(t *testing.T) {
	reg := newTestRegistry(t, toolRec("alpha", "Alpha", domain.CategoryUtilities))

	name := "Alpha Renamed"
	tags := []string{"renamed"}
	require.NoError(t, reg.UpdateTool("alpha", domain.ToolPatch{Name: &name, Tags: &tags}))

	got, err := reg.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, "Alpha Renamed", got.Name)
	require.Equal(t, []string{"renamed"}, got.Tags)
	// Untouched fields survive the merge.
	require.Equal(t, domain.CategoryUtilities, got.Category)
}

func TestUpdateToolUnknownID(t *testing.T) {
	reg := newTestRegistry(t)
	name := "x"
	require.ErrorIs(t, reg.UpdateTool("ghost", domain.ToolPatch{Name: &name}), domain.ErrToolNotFound)
}

func TestUpdateToolRejectsInvalidMerge(t *testing.T) {
	reg := newTestRegistry(t, toolRec("alpha", "Alpha", domain.CategoryUtilities))

	empty := ""
	err := reg.UpdateTool("alpha", domain.ToolPatch{Name: &empty})
	_, ok := domain.AsValidationError(err)
	require.True(t, ok)

	got, err := reg.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, "Alpha", got.Name)
}

func TestUpdateToolRejectsPathCollision(t *testing.T) {
	reg := newTestRegistry(t,
		toolRec("alpha", "Alpha", domain.CategoryUtilities),
		toolRec("beta", "Beta", domain.CategoryDesign),
	)

	taken := domain.RoutePrefix + "alpha"
	err := reg.UpdateTool("beta", domain.ToolPatch{Path: &taken})
	verr, ok := domain.AsValidationError(err)
	require.True(t, ok)
	require.Contains(t, verr.Violations[0], "already in use")

	// Re-asserting its own path is not a collision.
	own := domain.RoutePrefix + "beta"
	require.NoError(t, reg.UpdateTool("beta", domain.ToolPatch{Path: &own}))
}

func TestRemoveTool(t *testing.T) {
	reg := newTestRegistry(t, toolRec("alpha", "Alpha", domain.CategoryUtilities))

	require.NoError(t, reg.RemoveTool("alpha"))
	require.ErrorIs(t, reg.RemoveTool("alpha"), domain.ErrToolNotFound)

	all, err := reg.GetAll()
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestToggleFavorite(t *testing.T) {
	reg := newTestRegistry(t, toolRec("alpha", "Alpha", domain.CategoryUtilities))

	require.NoError(t, reg.ToggleFavorite("alpha"))
	got, err := reg.Get("alpha")
	require.NoError(t, err)
	require.True(t, got.IsFavorite)

	require.NoError(t, reg.ToggleFavorite("alpha"))
	got, err = reg.Get("alpha")
	require.NoError(t, err)
	require.False(t, got.IsFavorite)

	require.ErrorIs(t, reg.ToggleFavorite("ghost"), domain.ErrToolNotFound)
}

func TestRecordUsage(t *testing.T) {
	reg := newTestRegistry(t, toolRec("alpha", "Alpha", domain.CategoryUtilities))

	before := time.Now()
	require.NoError(t, reg.RecordUsage("alpha"))

	got, err := reg.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, 1, got.UsageCount)
	require.False(t, got.LastUsed.Before(before))

	require.NoError(t, reg.RecordUsage("alpha"))
	got, err = reg.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, 2, got.UsageCount)

	require.ErrorIs(t, reg.RecordUsage("ghost"), domain.ErrToolNotFound)
}

func TestMutationsSucceedWhenStoreUnavailable(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "tools.db"), zap.NewNop())
	require.NoError(t, err)
	reg := New(st, zap.NewNop())
	require.NoError(t, reg.Initialize([]domain.Tool{toolRec("alpha", "Alpha", domain.CategoryUtilities)}))

	// Mutations against a dead store log a warning and keep working; the
	// in-memory collection stays authoritative.
	require.NoError(t, st.Close())

	require.NoError(t, reg.AddTool(toolRec("beta", "Beta", domain.CategoryDesign)))
	require.NoError(t, reg.RecordUsage("alpha"))
	require.NoError(t, reg.ToggleFavorite("beta"))

	all, err := reg.GetAll()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta"}, ids(all))

	alpha, err := reg.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, 1, alpha.UsageCount)
	require.False(t, alpha.LastUsed.IsZero())

	beta, err := reg.Get("beta")
	require.NoError(t, err)
	require.True(t, beta.IsFavorite)

	// Flush is the explicit path that surfaces the store failure.
	require.ErrorIs(t, reg.Flush(), domain.ErrStoreClosed)
}

func TestUsageSurvivesRestart(t *testing.T) {
	st := openTestStore(t)
	defaults := []domain.Tool{toolRec("alpha", "Alpha", domain.CategoryUtilities)}

	first := New(st, zap.NewNop())
	require.NoError(t, first.Initialize(defaults))
	require.NoError(t, first.RecordUsage("alpha"))
	require.NoError(t, first.RecordUsage("alpha"))

	// The counters live in the tracker, so a fresh registry over the same
	// store reconciles them even though RecordUsage never re-saved the
	// collection.
	second := New(st, zap.NewNop())
	require.NoError(t, second.Initialize(defaults))
	got, err := second.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, 2, got.UsageCount)
	require.False(t, got.LastUsed.IsZero())
}

func TestClearUsage(t *testing.T) {
	reg := newTestRegistry(t, toolRec("alpha", "Alpha", domain.CategoryUtilities))
	require.NoError(t, reg.RecordUsage("alpha"))

	require.NoError(t, reg.ClearUsage())
	got, err := reg.Get("alpha")
	require.NoError(t, err)
	require.Zero(t, got.UsageCount)
	require.True(t, got.LastUsed.IsZero())
	// Metadata is untouched.
	require.Equal(t, "Alpha", got.Name)
}

func TestSnapshotsAreImmutable(t *testing.T) {
	reg := newTestRegistry(t, toolRec("alpha", "Alpha", domain.CategoryUtilities))

	got, err := reg.Get("alpha")
	require.NoError(t, err)
	got.Name = "Mutated"
	got.Tags[0] = "mutated"

	fresh, err := reg.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, "Alpha", fresh.Name)
	require.Equal(t, []string{"alpha"}, fresh.Tags)
}

func TestEndToEndScenario(t *testing.T) {
	reg := newTestRegistry(t,
		toolRec("a", "Tool A", domain.CategoryUtilities),
		toolRec("b", "Tool B", domain.CategoryDesign),
	)

	for i := 0; i < 3; i++ {
		require.NoError(t, reg.RecordUsage("a"))
	}

	byUsage, err := reg.GetFiltered(FilterOptions{SortBy: SortByUsage})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids(byUsage))

	require.NoError(t, reg.RemoveTool("a"))
	all, err := reg.GetAll()
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, ids(all))
}
