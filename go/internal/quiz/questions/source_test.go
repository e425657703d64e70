package questions

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlQuestions = `
- id: capital
  text: Capital of France?
  options: [Paris, Rome, Madrid]
  correct_answer: Paris
  time_limit_ms: 20000
- text: 2 + 2?
  options: ["3", "4"]
  correct_answer: "4"
`

const jsonQuestions = `[
  {"id": "a", "text": "Largest planet?", "options": ["Jupiter", "Mars"], "correct_answer": "Jupiter", "base_points": 20}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileSourceYAML(t *testing.T) {
	src := NewFileSource(writeFile(t, "questions.yaml", yamlQuestions))

	qs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "capital", qs[0].ID)
	assert.Equal(t, int64(20000), qs[0].TimeLimitMs)
	assert.Equal(t, "q2", qs[1].ID)
	assert.Equal(t, int64(0), qs[1].TimeLimitMs)
}

func TestFileSourceJSON(t *testing.T) {
	src := NewFileSource(writeFile(t, "questions.json", jsonQuestions))

	qs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, 20, qs[0].BasePoints)
	assert.Equal(t, []string{"Jupiter", "Mars"}, qs[0].Options)
}

func TestFileSourceErrors(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background())
	require.Error(t, err)

	_, err = NewFileSource(writeFile(t, "questions.txt", jsonQuestions)).Load(context.Background())
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	bad := `[{"text": "Q", "options": ["A", "B"], "correct_answer": "C"}]`
	_, err = NewFileSource(writeFile(t, "bad.json", bad)).Load(context.Background())
	require.ErrorIs(t, err, models.ErrQuestionAnswer)
}

type fixedSource []models.Question

func (f fixedSource) Load(context.Context) ([]models.Question, error) {
	return f, nil
}

func TestShuffledKeepsQuestions(t *testing.T) {
	base := fixedSource{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		base = append(base, models.Question{ID: id})
	}
	src := Shuffled(base, rand.New(rand.NewSource(1)))

	qs, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, base, qs)
	assert.Equal(t, "a", base[0].ID, "source slice must not be reordered")
}
