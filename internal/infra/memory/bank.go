package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches the fallback question bank from a backing store.
type BankLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// Bank caches the loaded question bank with TTL to avoid repeated backing
// store hits; concurrent cache misses are collapsed into one load.
type Bank struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	questions []domain.Question
	expiresAt time.Time
}

func NewBank(loader BankLoader, ttl time.Duration) *Bank {
	return &Bank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Questions returns the cached bank, reloading it once the TTL lapses.
func (b *Bank) Questions(ctx context.Context) ([]domain.Question, error) {
	now := b.clock()

	b.mu.RLock()
	if b.questions != nil && b.expiresAt.After(now) {
		cached := b.questions
		b.mu.RUnlock()
		return cached, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do("bank", func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if b.questions != nil && b.expiresAt.After(now) {
			cached := b.questions
			b.mu.RUnlock()
			return cached, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.questions = questions
		b.expiresAt = now.Add(b.ttlWithJitter())
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *Bank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader serves a bundled question set; it is the last line of the
// fallback chain when no database is configured.
type StaticBankLoader struct {
	questions []domain.Question
}

func NewStaticBankLoader(questions []domain.Question) *StaticBankLoader {
	return &StaticBankLoader{questions: questions}
}

func (l *StaticBankLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return l.questions, nil
}

// BundledQuestions is the built-in fallback bank used when neither the remote
// provider nor a database bank is reachable.
func BundledQuestions() []domain.Question {
	return []domain.Question{
		{ID: "local-1", Text: "What is the capital of France?", Options: []string{"Berlin", "Paris", "Madrid", "Rome"}, CorrectAnswer: 1, Difficulty: domain.DifficultyEasy, Category: "Geography"},
		{ID: "local-2", Text: "What is the largest ocean on Earth?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectAnswer: 3, Difficulty: domain.DifficultyEasy, Category: "Geography"},
		{ID: "local-3", Text: "How many continents are there?", Options: []string{"5", "6", "7", "8"}, CorrectAnswer: 2, Difficulty: domain.DifficultyEasy, Category: "Geography"},
		{ID: "local-4", Text: "Which planet is known as the Red Planet?", Options: []string{"Earth", "Venus", "Mars", "Jupiter"}, CorrectAnswer: 2, Difficulty: domain.DifficultyEasy, Category: "Science"},
		{ID: "local-5", Text: "How many legs does a spider have?", Options: []string{"6", "8", "10", "12"}, CorrectAnswer: 1, Difficulty: domain.DifficultyEasy, Category: "Science"},
		{ID: "local-6", Text: "What is the chemical symbol for gold?", Options: []string{"Go", "Gd", "Au", "Ag"}, CorrectAnswer: 2, Difficulty: domain.DifficultyMedium, Category: "Science"},
		{ID: "local-7", Text: "In which year did World War II end?", Options: []string{"1943", "1944", "1945", "1946"}, CorrectAnswer: 2, Difficulty: domain.DifficultyMedium, Category: "History"},
		{ID: "local-8", Text: "Which artist painted the Mona Lisa?", Options: []string{"Michelangelo", "Leonardo da Vinci", "Raphael", "Donatello"}, CorrectAnswer: 1, Difficulty: domain.DifficultyMedium, Category: "Art"},
		{ID: "local-9", Text: "What is the longest river in the world?", Options: []string{"Amazon", "Nile", "Yangtze", "Mississippi"}, CorrectAnswer: 1, Difficulty: domain.DifficultyMedium, Category: "Geography"},
		{ID: "local-10", Text: "Which gas do plants absorb from the atmosphere?", Options: []string{"Oxygen", "Nitrogen", "Carbon Dioxide", "Hydrogen"}, CorrectAnswer: 2, Difficulty: domain.DifficultyMedium, Category: "Science"},
		{ID: "local-11", Text: "What is the rarest blood type in humans?", Options: []string{"O negative", "B negative", "AB negative", "A negative"}, CorrectAnswer: 2, Difficulty: domain.DifficultyHard, Category: "Science"},
		{ID: "local-12", Text: "Which element has the highest melting point?", Options: []string{"Titanium", "Tungsten", "Osmium", "Platinum"}, CorrectAnswer: 1, Difficulty: domain.DifficultyHard, Category: "Science"},
		{ID: "local-13", Text: "Who composed the opera The Magic Flute?", Options: []string{"Beethoven", "Bach", "Mozart", "Haydn"}, CorrectAnswer: 2, Difficulty: domain.DifficultyHard, Category: "Music"},
		{ID: "local-14", Text: "What is the smallest country in the world by area?", Options: []string{"Monaco", "Nauru", "Vatican City", "San Marino"}, CorrectAnswer: 2, Difficulty: domain.DifficultyHard, Category: "Geography"},
		{ID: "local-15", Text: "In which year was the first transatlantic telegraph cable completed?", Options: []string{"1858", "1866", "1872", "1881"}, CorrectAnswer: 0, Difficulty: domain.DifficultyHard, Category: "History"},
	}
}
