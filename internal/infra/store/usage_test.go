package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toolshelf/internal/domain"
)

func TestRecordUseCreatesAtOne(t *testing.T) {
	st := openTestStore(t)

	before := time.Now()
	record, err := st.RecordUse("markdown-formatter")
	require.NoError(t, err)
	require.Equal(t, 1, record.UsageCount)
	require.False(t, record.LastUsed.Before(before))

	usage, err := st.Usage()
	require.NoError(t, err)
	require.Equal(t, 1, usage["markdown-formatter"].UsageCount)
}

func TestRecordUseIncrements(t *testing.T) {
	st := openTestStore(t)

	var last domain.UsageRecord
	for i := 0; i < 3; i++ {
		record, err := st.RecordUse("text-cleaner")
		require.NoError(t, err)
		require.False(t, record.LastUsed.Before(last.LastUsed))
		last = record
	}
	require.Equal(t, 3, last.UsageCount)
}

func TestUsageIndependentOfTools(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.SaveTools([]domain.Tool{sampleTool("alpha", "Alpha")}))
	_, err := st.RecordUse("alpha")
	require.NoError(t, err)

	// Clearing usage leaves the tool collection untouched.
	require.NoError(t, st.ClearUsage())
	usage, err := st.Usage()
	require.NoError(t, err)
	require.Empty(t, usage)

	tools, err := st.LoadTools()
	require.NoError(t, err)
	require.Len(t, tools, 1)

	// And replacing the collection leaves counters untouched.
	_, err = st.RecordUse("alpha")
	require.NoError(t, err)
	require.NoError(t, st.SaveTools(nil))
	usage, err = st.Usage()
	require.NoError(t, err)
	require.Equal(t, 1, usage["alpha"].UsageCount)
}
