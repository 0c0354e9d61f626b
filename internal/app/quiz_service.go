package app

import (
	"context"
	"log"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
)

// Policy maps a difficulty to its question count and per-question time limit.
type Policy map[domain.Difficulty]domain.SessionConfig

// DefaultPolicy returns the standard difficulty table: easy runs are short
// and quick, hard runs are longer with more thinking time.
func DefaultPolicy() Policy {
	return Policy{
		domain.DifficultyEasy:   {Difficulty: domain.DifficultyEasy, QuestionCount: 7, TimeLimitSeconds: 20},
		domain.DifficultyMedium: {Difficulty: domain.DifficultyMedium, QuestionCount: 9, TimeLimitSeconds: 30},
		domain.DifficultyHard:   {Difficulty: domain.DifficultyHard, QuestionCount: 10, TimeLimitSeconds: 45},
	}
}

// Config resolves the session config for a difficulty, falling back to the
// medium row for unknown values.
func (p Policy) Config(difficulty domain.Difficulty) domain.SessionConfig {
	if cfg, ok := p[difficulty]; ok {
		return cfg
	}
	cfg := p[domain.DifficultyMedium]
	cfg.Difficulty = difficulty
	return cfg
}

// FinalReport is everything the presentation layer needs after a session.
type FinalReport struct {
	Outcome        domain.SessionOutcome   `json:"outcome"`
	Score          domain.ScoreResult      `json:"score"`
	Message        string                  `json:"message"`
	HighScores     []domain.HighScoreEntry `json:"highScores"`
	IsNewHighScore bool                    `json:"isNewHighScore"`
}

// QuizService contains the core quiz use cases: start and drive sessions,
// score completed ones and maintain the high score ledger.
type QuizService struct {
	source      QuestionSource
	ledger      *Ledger
	policy      Policy
	multipliers Multipliers

	mu       sync.Mutex
	sessions map[string]*sessionHandle
}

type sessionHandle struct {
	session *Session
	cancel  context.CancelFunc
}

// NewQuizService wires the service. A nil policy or multiplier table falls
// back to the defaults.
func NewQuizService(source QuestionSource, ledger *Ledger, policy Policy, multipliers Multipliers) *QuizService {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if multipliers == nil {
		multipliers = DefaultMultipliers()
	}
	return &QuizService{
		source:      source,
		ledger:      ledger,
		policy:      policy,
		multipliers: multipliers,
		sessions:    make(map[string]*sessionHandle),
	}
}

// StartSession creates and activates a session for a client, replacing and
// tearing down any previous one (restart semantics). On success a background
// ticker drives the countdown until the session leaves the Active phase.
func (s *QuizService) StartSession(ctx context.Context, clientID string, difficulty domain.Difficulty, category string) (*Session, error) {
	cfg := s.policy.Config(difficulty)
	session := NewSession(cfg, category)
	tickCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if previous, ok := s.sessions[clientID]; ok {
		previous.cancel()
		previous.session.Close()
	}
	s.sessions[clientID] = &sessionHandle{session: session, cancel: cancel}
	s.mu.Unlock()

	if err := session.Start(ctx, s.source); err != nil {
		cancel()
		return session, err
	}

	go runTicker(tickCtx, session)
	return session, nil
}

// runTicker drives the session clock once per second until the session
// leaves the Active phase or the handle is canceled. The countdown never
// outlives its session.
func runTicker(ctx context.Context, session *Session) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			session.Tick()
			if session.Snapshot().Phase != PhaseActive {
				return
			}
		}
	}
}

// Session looks up the active session for a client.
func (s *QuizService) Session(clientID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.sessions[clientID]
	if !ok {
		return nil, false
	}
	return handle.session, true
}

// SubmitAnswer records a selection on the client's session.
func (s *QuizService) SubmitAnswer(clientID, questionID string, optionIndex int) error {
	session, ok := s.Session(clientID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.SubmitAnswer(questionID, optionIndex)
}

// Advance moves the client's session forward one question.
func (s *QuizService) Advance(clientID string) error {
	session, ok := s.Session(clientID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Advance()
}

// Previous moves the client's session back one question.
func (s *QuizService) Previous(clientID string) error {
	session, ok := s.Session(clientID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Previous()
}

// Finish scores a completed session, records it in the ledger and returns the
// full report. Ledger faults are reported in the log only; the score always
// comes back to the caller.
func (s *QuizService) Finish(ctx context.Context, clientID string) (FinalReport, error) {
	session, ok := s.Session(clientID)
	if !ok {
		return FinalReport{}, domain.ErrSessionNotFound
	}
	outcome, err := session.Outcome()
	if err != nil {
		return FinalReport{}, err
	}

	score := ComputeScore(outcome.Questions, outcome.Answers, outcome.Difficulty, outcome.ElapsedSeconds, s.multipliers)
	entries, isNew, err := s.ledger.RecordIfQualifying(ctx, score, len(outcome.Questions), outcome.Difficulty)
	if err != nil {
		// Never fail a finished quiz on storage trouble.
		log.Printf("high score record failed: %v", err)
		entries, _ = s.ledger.Entries(ctx)
		isNew = false
	}

	return FinalReport{
		Outcome:        outcome,
		Score:          score,
		Message:        ScoreMessage(score.Percentage, outcome.Difficulty),
		HighScores:     entries,
		IsNewHighScore: isNew,
	}, nil
}

// HighScores returns the ranked history.
func (s *QuizService) HighScores(ctx context.Context) ([]domain.HighScoreEntry, error) {
	return s.ledger.Entries(ctx)
}

// ClearHighScores erases the history.
func (s *QuizService) ClearHighScores(ctx context.Context) error {
	return s.ledger.Clear(ctx)
}

// CloseSession tears down a client's session, stopping its countdown and
// discarding in-flight fetch results.
func (s *QuizService) CloseSession(clientID string) {
	s.mu.Lock()
	handle, ok := s.sessions[clientID]
	if ok {
		delete(s.sessions, clientID)
	}
	s.mu.Unlock()
	if ok {
		handle.cancel()
		handle.session.Close()
	}
}
