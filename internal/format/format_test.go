package format

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophreview/internal/models"
)

func sample() []models.Annotation {
	return []models.Annotation{
		{
			ID:        "a1",
			Type:      models.TypeComment,
			Content:   "multi\n```\nline with fence",
			Status:    models.StatusOpen,
			Timestamp: 100,
			Anchor:    map[string]any{"quote": "hello"},
		},
		{
			ID:         "s1",
			Type:       models.TypeSuggestion,
			Status:     models.StatusResolved,
			ParentID:   "a1",
			Suggestion: &models.Suggestion{Original: "teh", Replacement: "the"},
		},
	}
}

func TestInline_RoundTrip(t *testing.T) {
	body := "# Title\n\nSome text.\n"

	text, err := Inline{}.Serialize(body, sample())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "# Title\n\nSome text.\n\n```gophreview\n"))

	records, err := Inline{}.Parse(text)
	require.NoError(t, err)
	assert.Equal(t, sample(), records)
	assert.Equal(t, body, Body(text))

	// Повторная сериализация заменяет блок, а не дописывает второй
	again, err := Inline{}.Serialize(text, sample()[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(again, fenceOpen))
	records, err = Inline{}.Parse(again)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestInline_NoBlock(t *testing.T) {
	text := "plain document\n```go\ncode\n```\n"

	records, err := Inline{}.Parse(text)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, text, Body(text))

	out, err := Inline{}.Serialize(text, nil)
	require.NoError(t, err)
	assert.Equal(t, text, out)
}

func TestInline_BlockNotAtEnd(t *testing.T) {
	text := "intro\n```gophreview\nversion: 1\n```\ntrailing prose\n"
	assert.Equal(t, text, Body(text))
}

func TestInline_EmptyDocument(t *testing.T) {
	text, err := Inline{}.Serialize("", sample()[:1])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, fenceOpen))

	records, err := Inline{}.Parse(text)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "", Body(text))
}

func TestParse_Errors(t *testing.T) {
	_, err := Sidecar{}.Parse("version: 99\nannotations: []\n")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Sidecar{}.Parse("annotations: {not: a list")
	assert.Error(t, err)
}

func TestParse_DefaultStatus(t *testing.T) {
	records, err := Sidecar{}.Parse("version: 1\nannotations:\n  - id: a1\n    type: comment\n    content: hi\n")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusOpen, records[0].Status)
}

func TestLoadWriteDocument(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(doc, []byte("# Doc\n"), 0o644))

	t.Run("sidecar", func(t *testing.T) {
		body, records, err := LoadDocument(doc, true)
		require.NoError(t, err)
		assert.Equal(t, "# Doc\n", body)
		assert.Empty(t, records)

		_, err = WriteDocument(doc, true, body, sample())
		require.NoError(t, err)

		original, err := os.ReadFile(doc)
		require.NoError(t, err)
		assert.Equal(t, "# Doc\n", string(original), "sidecar mode leaves the document untouched")

		_, records, err = LoadDocument(doc, true)
		require.NoError(t, err)
		assert.Equal(t, sample(), records)
	})

	t.Run("inline", func(t *testing.T) {
		written, err := WriteDocument(doc, false, "# Doc\n", sample())
		require.NoError(t, err)

		onDisk, err := os.ReadFile(doc)
		require.NoError(t, err)
		assert.Equal(t, written, string(onDisk))

		body, records, err := LoadDocument(doc, false)
		require.NoError(t, err)
		assert.Equal(t, "# Doc\n", body)
		assert.Equal(t, sample(), records)
	})

	_, _, err := LoadDocument(filepath.Join(dir, "missing.md"), false)
	assert.Error(t, err)
}
