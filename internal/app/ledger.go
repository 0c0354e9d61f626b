package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"trivia-quiz-service/internal/domain"
)

// maxLedgerEntries bounds the retained high score history.
const maxLedgerEntries = 10

// LedgerStore abstracts the durable bytes behind the high score list so tests
// can swap in an in-memory fake.
type LedgerStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
}

// Ledger persists a bounded, percentage-ranked history of session results.
// Storage faults on read degrade to an empty history and never block a quiz.
type Ledger struct {
	store LedgerStore
	now   func() time.Time
}

// NewLedger builds a ledger on top of a store.
func NewLedger(store LedgerStore) *Ledger {
	return NewLedgerWithClock(store, time.Now)
}

// NewLedgerWithClock is test-only for deterministic timestamps.
func NewLedgerWithClock(store LedgerStore, now func() time.Time) *Ledger {
	return &Ledger{store: store, now: now}
}

// Entries loads the stored high scores; absent or malformed data reads as an
// empty list.
func (l *Ledger) Entries(ctx context.Context) ([]domain.HighScoreEntry, error) {
	data, err := l.store.Load(ctx)
	if err != nil {
		log.Printf("high score load failed, treating as empty: %v", err)
		return nil, nil
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []domain.HighScoreEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("high score data malformed, treating as empty: %v", err)
		return nil, nil
	}
	return entries, nil
}

// RecordIfQualifying inserts the result when the list has room or the result
// beats at least one existing entry, keeping the list sorted by percentage
// descending and truncated to the top ten. Every attempt gets its own entry;
// identical results are not deduped.
func (l *Ledger) RecordIfQualifying(ctx context.Context, result domain.ScoreResult, total int, difficulty domain.Difficulty) ([]domain.HighScoreEntry, bool, error) {
	entries, _ := l.Entries(ctx)

	qualifies := len(entries) < maxLedgerEntries
	for _, existing := range entries {
		if result.Percentage > existing.Percentage {
			qualifies = true
			break
		}
	}
	if !qualifies {
		return entries, false, nil
	}

	now := l.now()
	entries = append(entries, domain.HighScoreEntry{
		Score:      result.BaseScore,
		Total:      total,
		Percentage: result.Percentage,
		Difficulty: difficulty,
		Timestamp:  now.UnixMilli(),
		Date:       now.UTC(),
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Percentage > entries[j].Percentage
	})
	if len(entries) > maxLedgerEntries {
		entries = entries[:maxLedgerEntries]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return entries, true, fmt.Errorf("marshal high scores: %w", err)
	}
	if err := l.store.Save(ctx, data); err != nil {
		return entries, true, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return entries, true, nil
}

// Clear erases all recorded entries.
func (l *Ledger) Clear(ctx context.Context) error {
	if err := l.store.Clear(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}
