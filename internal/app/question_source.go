package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
)

// QuestionSource produces the question set for one session.
type QuestionSource interface {
	AcquireQuestions(ctx context.Context, count int, difficulty domain.Difficulty, category string) ([]domain.Question, error)
}

// RemoteProvider fetches normalized questions from the remote trivia API.
type RemoteProvider interface {
	FetchQuestions(ctx context.Context, count int, difficulty domain.Difficulty, category string) ([]domain.Question, error)
}

// QuestionBank supplies the local fallback question set.
type QuestionBank interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// Source is the two-tier question resolver: remote-preferred, local-guaranteed.
// Any remote failure is absorbed by the bank fallback; only an unusable bank
// surfaces as a terminal error.
type Source struct {
	remote RemoteProvider
	bank   QuestionBank

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSource builds a resolver. remote may be nil to run bank-only.
func NewSource(remote RemoteProvider, bank QuestionBank) *Source {
	return NewSourceWithRandom(remote, bank, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSourceWithRandom is test-only for deterministic fallback shuffles.
func NewSourceWithRandom(remote RemoteProvider, bank QuestionBank, rnd *rand.Rand) *Source {
	return &Source{remote: remote, bank: bank, rnd: rnd}
}

// AcquireQuestions asks the remote provider first and falls back to the local
// bank on any failure: filter by difficulty, widen to the full bank when the
// filtered subset is too small, shuffle, truncate to count.
func (s *Source) AcquireQuestions(ctx context.Context, count int, difficulty domain.Difficulty, category string) ([]domain.Question, error) {
	if count <= 0 {
		return nil, domain.ErrInvalidSessionState
	}

	if s.remote != nil {
		questions, err := s.remote.FetchQuestions(ctx, count, difficulty, category)
		if err == nil {
			return questions, nil
		}
		log.Printf("remote question fetch failed, using local bank: %v", err)
	}

	bank, err := s.bank.Questions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoQuestionsAvailable, err)
	}
	if len(bank) == 0 {
		return nil, domain.ErrNoQuestionsAvailable
	}

	filtered := make([]domain.Question, 0, len(bank))
	for _, q := range bank {
		if q.Difficulty == difficulty {
			filtered = append(filtered, q)
		}
	}
	if len(filtered) < count {
		filtered = bank
	}

	shuffled := make([]domain.Question, len(filtered))
	copy(shuffled, filtered)
	s.mu.Lock()
	s.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.mu.Unlock()

	if len(shuffled) > count {
		shuffled = shuffled[:count]
	}
	return shuffled, nil
}
