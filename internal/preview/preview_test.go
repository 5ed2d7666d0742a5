package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batch-edit-engine/internal/models"
)

func TestBuildDerivesRangeFromScan(t *testing.T) {
	p := Build("a.txt", "a\nb\nc\nd", "a\nX\nc\nd", nil, 1)

	assert.Equal(t, models.LineRange{StartLine: 2, EndLine: 2}, p.Range)
	assert.Equal(t, []string{"a", "b", "c"}, p.Before)
	assert.Equal(t, []string{"a", "X", "c"}, p.After)
}

func TestBuildKnownRangeWithInsertion(t *testing.T) {
	// The after view's upper bound uses the after line count, since an
	// insertion changes total length.
	p := Build("a.txt", "a\nb\nc", "a\nX\nY\nc", &models.LineRange{StartLine: 2, EndLine: 2}, 1)

	assert.Equal(t, models.LineRange{StartLine: 2, EndLine: 2}, p.Range)
	assert.Equal(t, []string{"a", "b", "c"}, p.Before)
	assert.Equal(t, []string{"a", "X", "Y", "c"}, p.After)
}

func TestBuildClampsContextAtEdges(t *testing.T) {
	p := Build("a.txt", "a\nb", "X\nb", nil, 10)

	assert.Equal(t, models.LineRange{StartLine: 1, EndLine: 1}, p.Range)
	assert.Equal(t, []string{"a", "b"}, p.Before)
	assert.Equal(t, []string{"X", "b"}, p.After)
}

func TestBuildTrailingChange(t *testing.T) {
	p := Build("a.txt", "a\nb\nc", "a\nb\nc\nd", nil, 0)

	require.Equal(t, 4, p.Range.StartLine)
	assert.Empty(t, p.Before)
	assert.Equal(t, []string{"d"}, p.After)
}

func TestBuildIdenticalContent(t *testing.T) {
	p := Build("a.txt", "same\ncontent", "same\ncontent", nil, 2)

	assert.Equal(t, models.LineRange{}, p.Range)
	assert.Empty(t, p.Before)
	assert.Empty(t, p.After)
	assert.Empty(t, p.UnifiedDiff)
}

func TestBuildUnifiedDiff(t *testing.T) {
	p := Build("a.txt", "a\nb\nc", "a\nX\nc", nil, 1)

	assert.Contains(t, p.UnifiedDiff, "--- a/a.txt")
	assert.Contains(t, p.UnifiedDiff, "+++ b/a.txt")
	assert.Contains(t, p.UnifiedDiff, "-b")
	assert.Contains(t, p.UnifiedDiff, "+X")
	assert.Contains(t, p.UnifiedDiff, "@@")
}
