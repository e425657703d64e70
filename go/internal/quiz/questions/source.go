// Package questions loads the question list a game is played with.
package questions

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported question file format")

// Source supplies the ordered question list for a game.
type Source interface {
	Load(ctx context.Context) ([]models.Question, error)
}

// FileSource reads questions from a JSON or YAML file. The file is re-read on
// every load so edits apply to the next game.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Load(ctx context.Context) ([]models.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}
	qs, err := Parse(data, filepath.Ext(s.Path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}

	log.Debug().
		Str("path", s.Path).
		Int("questions", len(qs)).
		Msg("loaded questions from file")
	return qs, nil
}

// Parse decodes a question list. ext selects the format: ".json", ".yaml" or ".yml".
func Parse(data []byte, ext string) ([]models.Question, error) {
	var qs []models.Question
	switch strings.ToLower(ext) {
	case ".json", ".yaml", ".yml":
		// JSON is a subset of YAML
		if err := yaml.Unmarshal(data, &qs); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, ext)
	}
	for i := range qs {
		if qs[i].ID == "" {
			qs[i].ID = fmt.Sprintf("q%d", i+1)
		}
		if err := qs[i].Validate(); err != nil {
			return nil, fmt.Errorf("question %s: %w", qs[i].ID, err)
		}
	}
	return qs, nil
}

type shuffled struct {
	src Source
	mu  sync.Mutex
	rnd *rand.Rand
}

// Shuffled wraps src so every load returns its questions in a new random order.
func Shuffled(src Source, rnd *rand.Rand) Source {
	return &shuffled{src: src, rnd: rnd}
}

func (s *shuffled) Load(ctx context.Context) ([]models.Question, error) {
	qs, err := s.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := append([]models.Question(nil), qs...)

	s.mu.Lock()
	s.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	s.mu.Unlock()
	return out, nil
}
