package quiz

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/victornm/quizhub/internal/domain"
)

// SeedFile is the YAML layout accepted by Seed:
//
//	quizzes:
//	  - title: Go basics
//	    description: ...
//	    category: programming
//	    questions:
//	      - question: What does defer do?
//	        options: [...]
//	        correctAnswer: 1
type SeedFile struct {
	Quizzes []Draft `yaml:"quizzes"`
}

// Seed creates every quiz of a YAML seed file on behalf of creator. It stops at the first
// quiz that fails and returns the quizzes created so far.
func (s *Service) Seed(ctx context.Context, r io.Reader, creator domain.User) ([]domain.Quiz, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	created := make([]domain.Quiz, 0, len(f.Quizzes))
	for i, d := range f.Quizzes {
		q, err := s.CreateQuiz(ctx, CreateQuizRequest{
			Creator: creator,
			Draft:   d,
		})
		if err != nil {
			return created, fmt.Errorf("seed quiz %d (%q): %w", i, d.Title, err)
		}
		created = append(created, *q)
	}

	return created, nil
}
