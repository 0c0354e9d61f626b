package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

type stubSource struct {
	questions []domain.Question
	err       error
}

func (s stubSource) AcquireQuestions(_ context.Context, count int, _ domain.Difficulty, _ string) ([]domain.Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.questions) > count {
		return s.questions[:count], nil
	}
	return s.questions, nil
}

func easyConfig(questions, limit int) domain.SessionConfig {
	return domain.SessionConfig{
		Difficulty:       domain.DifficultyEasy,
		QuestionCount:    questions,
		TimeLimitSeconds: limit,
	}
}

func startedSession(t *testing.T, questionCount, limit int, now func() time.Time) *app.Session {
	t.Helper()
	session := app.NewSessionWithClock(easyConfig(questionCount, limit), "", now)
	source := stubSource{questions: makeQuestions(questionCount, domain.DifficultyEasy)}
	if err := session.Start(context.Background(), source); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return session
}

func TestSessionAnswerAndAdvance(t *testing.T) {
	session := startedSession(t, 3, 20, time.Now)

	snapshot := session.Snapshot()
	if snapshot.Phase != app.PhaseActive || snapshot.QuestionIndex != 0 {
		t.Fatalf("expected active at question 0, got %+v", snapshot)
	}
	if snapshot.SecondsLeft != 20 {
		t.Fatalf("expected full countdown, got %d", snapshot.SecondsLeft)
	}

	if err := session.SubmitAnswer(snapshot.Question.ID, snapshot.Question.CorrectAnswer); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	snapshot = session.Snapshot()
	if snapshot.SelectedAnswer != snapshot.Question.CorrectAnswer {
		t.Fatalf("expected recorded selection, got %d", snapshot.SelectedAnswer)
	}
	if snapshot.CorrectSoFar != 1 {
		t.Fatalf("expected 1 correct so far, got %d", snapshot.CorrectSoFar)
	}

	if err := session.Advance(); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	snapshot = session.Snapshot()
	if snapshot.QuestionIndex != 1 || snapshot.SecondsLeft != 20 {
		t.Fatalf("expected question 1 with reset clock, got %+v", snapshot)
	}
}

func TestSessionCompletesWithElapsedTime(t *testing.T) {
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }
	session := startedSession(t, 2, 20, now)

	current = current.Add(45 * time.Second)
	if err := session.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	current = current.Add(25 * time.Second)
	if err := session.Advance(); err != nil {
		t.Fatalf("final advance: %v", err)
	}

	if session.Snapshot().Phase != app.PhaseCompleted {
		t.Fatalf("expected completed, got %v", session.Snapshot().Phase)
	}
	outcome, err := session.Outcome()
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if outcome.ElapsedSeconds != 70 {
		t.Fatalf("expected 70s elapsed, got %v", outcome.ElapsedSeconds)
	}

	// Completed is terminal: no more answers.
	if err := session.SubmitAnswer(outcome.Questions[0].ID, 0); err != domain.ErrInvalidSessionState {
		t.Fatalf("expected invalid state after completion, got %v", err)
	}
	if err := session.Advance(); err != domain.ErrInvalidSessionState {
		t.Fatalf("expected invalid state advancing after completion, got %v", err)
	}
}

func TestSessionPreviousStopsAtZero(t *testing.T) {
	session := startedSession(t, 3, 20, time.Now)

	if err := session.Previous(); err != nil {
		t.Fatalf("previous at 0: %v", err)
	}
	if session.Snapshot().QuestionIndex != 0 {
		t.Fatalf("expected index pinned at 0")
	}

	_ = session.Advance()
	_ = session.Advance()
	if err := session.Previous(); err != nil {
		t.Fatalf("previous: %v", err)
	}
	snapshot := session.Snapshot()
	if snapshot.QuestionIndex != 1 || snapshot.SecondsLeft != 20 {
		t.Fatalf("expected index 1 with reset clock, got %+v", snapshot)
	}
}

func TestSessionExpiryAutoAdvancesAfterGrace(t *testing.T) {
	session := startedSession(t, 2, 3, time.Now)

	// Run the countdown out.
	session.Tick()
	session.Tick()
	session.Tick()
	snapshot := session.Snapshot()
	if !snapshot.TimeUp || snapshot.SecondsLeft != 0 || snapshot.QuestionIndex != 0 {
		t.Fatalf("expected time up on question 0, got %+v", snapshot)
	}

	// Two grace ticks, then the unanswered question is skipped.
	session.Tick()
	if session.Snapshot().QuestionIndex != 0 {
		t.Fatalf("expected grace period to hold the question")
	}
	session.Tick()
	snapshot = session.Snapshot()
	if snapshot.QuestionIndex != 1 {
		t.Fatalf("expected auto-advance to question 1, got %d", snapshot.QuestionIndex)
	}
	if snapshot.SecondsLeft != 3 || snapshot.TimeUp {
		t.Fatalf("expected fresh clock on question 1, got %+v", snapshot)
	}
}

func TestSessionLateAnswerDoesNotDoubleAdvance(t *testing.T) {
	session := startedSession(t, 3, 2, time.Now)

	session.Tick()
	session.Tick() // expiry fires here
	question := session.Snapshot().Question

	// A selection landing after expiry clears the latch but must not trigger
	// its own advancement.
	if err := session.SubmitAnswer(question.ID, 1); err != nil {
		t.Fatalf("late submit: %v", err)
	}
	if session.Snapshot().TimeUp {
		t.Fatalf("expected expired latch cleared by late answer")
	}

	session.Tick()
	session.Tick()
	snapshot := session.Snapshot()
	if snapshot.QuestionIndex != 1 {
		t.Fatalf("expected exactly one advancement, got index %d", snapshot.QuestionIndex)
	}
}

func TestSessionStartFailureIsRetryable(t *testing.T) {
	session := app.NewSession(easyConfig(3, 20), "")
	failing := stubSource{err: domain.ErrNoQuestionsAvailable}

	if err := session.Start(context.Background(), failing); !errors.Is(err, domain.ErrNoQuestionsAvailable) {
		t.Fatalf("expected terminal load error, got %v", err)
	}
	if session.Snapshot().Phase != app.PhaseFailed {
		t.Fatalf("expected failed phase")
	}

	// Retry from Failed works.
	working := stubSource{questions: makeQuestions(3, domain.DifficultyEasy)}
	if err := session.Start(context.Background(), working); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if session.Snapshot().Phase != app.PhaseActive {
		t.Fatalf("expected active after retry")
	}
}

func TestSessionCloseDiscardsLateFetch(t *testing.T) {
	session := app.NewSession(easyConfig(2, 20), "")
	source := blockingSource{
		release:   make(chan struct{}),
		questions: makeQuestions(2, domain.DifficultyEasy),
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Start(context.Background(), source)
	}()

	// Wait for the session to enter Loading, then abandon it.
	deadline := time.After(2 * time.Second)
	for session.Snapshot().Phase != app.PhaseLoading {
		select {
		case <-deadline:
			t.Fatalf("session never entered loading")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	session.Close()
	close(source.release)

	if err := <-done; err != domain.ErrInvalidSessionState {
		t.Fatalf("expected abandoned fetch to be discarded, got %v", err)
	}
	if session.Snapshot().Phase == app.PhaseActive {
		t.Fatalf("late fetch must not activate a closed session")
	}
}

type blockingSource struct {
	release   chan struct{}
	questions []domain.Question
}

func (s blockingSource) AcquireQuestions(ctx context.Context, _ int, _ domain.Difficulty, _ string) ([]domain.Question, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.questions, nil
}

func TestSessionSubscribeReceivesUpdates(t *testing.T) {
	session := startedSession(t, 2, 20, time.Now)

	updates, cancel := session.Subscribe()
	defer cancel()

	initial := <-updates
	if initial.Phase != app.PhaseActive {
		t.Fatalf("expected active snapshot, got %+v", initial)
	}

	if err := session.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	update := <-updates
	if update.QuestionIndex != 1 {
		t.Fatalf("expected update for question 1, got %+v", update)
	}
}
