package app

import (
	"context"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
)

// Phase is the lifecycle stage of a quiz session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLoading   Phase = "loading"
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// defaultGraceTicks is how many ticks after expiry the session waits before
// auto-advancing, so the user can perceive that time ran out.
const defaultGraceTicks = 2

// StateSnapshot is the session state published to subscribers after every
// mutation and tick.
type StateSnapshot struct {
	Phase          Phase            `json:"phase"`
	QuestionIndex  int              `json:"questionIndex"`
	QuestionCount  int              `json:"questionCount"`
	Question       *domain.Question `json:"question,omitempty"`
	SelectedAnswer int              `json:"selectedAnswer"` // -1 when unanswered
	SecondsLeft    int              `json:"secondsLeft"`
	TimeUp         bool             `json:"timeUp"`
	CorrectSoFar   int              `json:"correctSoFar"`
	Failure        string           `json:"failure,omitempty"`
}

// Session owns one quiz attempt: the ordered question list, the current
// position, the answer map and the per-question countdown. All mutation goes
// through its methods; the tick source is external (see QuizService).
type Session struct {
	cfg      domain.SessionConfig
	category string
	now      func() time.Time

	mu             sync.Mutex
	phase          Phase
	questions      []domain.Question
	answers        domain.AnswerMap
	index          int
	startedAt      time.Time
	elapsedSeconds float64
	failure        error
	clock          *Clock
	graceTicksLeft int
	gracePending   bool
	graceJustArmed bool
	subscribers    map[chan StateSnapshot]struct{}
}

// NewSession returns an idle session for the given config.
func NewSession(cfg domain.SessionConfig, category string) *Session {
	return NewSessionWithClock(cfg, category, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(cfg domain.SessionConfig, category string, now func() time.Time) *Session {
	s := &Session{
		cfg:         cfg,
		category:    category,
		now:         now,
		phase:       PhaseIdle,
		answers:     make(domain.AnswerMap),
		subscribers: make(map[chan StateSnapshot]struct{}),
	}
	s.clock = NewClock(cfg.TimeLimitSeconds, s.onExpire)
	return s
}

// Config returns the immutable session config.
func (s *Session) Config() domain.SessionConfig {
	return s.cfg
}

// Start acquires the question set and activates the session. A failure after
// the source exhausted its fallback chain moves the session to Failed; the
// caller may Start again to retry. Cancelling ctx abandons the fetch and
// leaves the session Failed so a late result cannot populate it.
func (s *Session) Start(ctx context.Context, source QuestionSource) error {
	s.mu.Lock()
	if s.phase != PhaseIdle && s.phase != PhaseFailed {
		s.mu.Unlock()
		return domain.ErrInvalidSessionState
	}
	s.phase = PhaseLoading
	s.failure = nil
	s.broadcastLocked()
	s.mu.Unlock()

	questions, err := source.AcquireQuestions(ctx, s.cfg.QuestionCount, s.cfg.Difficulty, s.category)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseLoading {
		// Session was closed or restarted while the fetch was in flight.
		return domain.ErrInvalidSessionState
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		s.phase = PhaseFailed
		s.failure = err
		s.broadcastLocked()
		return err
	}

	s.phase = PhaseActive
	s.questions = questions
	s.answers = make(domain.AnswerMap)
	s.index = 0
	s.startedAt = s.now()
	s.gracePending = false
	s.graceJustArmed = false
	s.clock.Reset(s.cfg.TimeLimitSeconds)
	s.broadcastLocked()
	return nil
}

// SubmitAnswer records (or overwrites) the selected option for a question and
// clears the clock's expired latch, so a selection landing after expiry does
// not trigger a second advancement.
func (s *Session) SubmitAnswer(questionID string, optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return domain.ErrInvalidSessionState
	}
	question := s.questionByIDLocked(questionID)
	if question == nil {
		return domain.ErrInvalidSessionState
	}
	if optionIndex < 0 || optionIndex >= len(question.Options) {
		return domain.ErrInvalidSessionState
	}
	s.answers[questionID] = optionIndex
	s.clock.ClearExpired()
	s.broadcastLocked()
	return nil
}

// Advance moves to the next question, or completes the session on the last
// one, recording elapsed wall-clock time.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked()
}

func (s *Session) advanceLocked() error {
	if s.phase != PhaseActive {
		return domain.ErrInvalidSessionState
	}
	s.gracePending = false
	s.graceJustArmed = false
	if s.index < len(s.questions)-1 {
		s.index++
		s.clock.Reset(s.cfg.TimeLimitSeconds)
	} else {
		s.phase = PhaseCompleted
		s.elapsedSeconds = s.now().Sub(s.startedAt).Seconds()
	}
	s.broadcastLocked()
	return nil
}

// Previous steps back one question, never below zero. The clock resets to the
// full per-question limit on any index change.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return domain.ErrInvalidSessionState
	}
	if s.index > 0 {
		s.index--
		s.gracePending = false
		s.graceJustArmed = false
		s.clock.Reset(s.cfg.TimeLimitSeconds)
	}
	s.broadcastLocked()
	return nil
}

// Tick drives the countdown one second forward. After expiry the session
// waits a fixed number of grace ticks and then auto-advances, counting an
// unanswered question as incorrect.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.phase != PhaseActive {
		s.mu.Unlock()
		return
	}
	clock := s.clock
	s.mu.Unlock()

	clock.Tick() // may invoke onExpire

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return
	}
	if s.gracePending {
		if s.graceJustArmed {
			// The tick that fired expiry does not count against the grace
			// period.
			s.graceJustArmed = false
		} else {
			s.graceTicksLeft--
			if s.graceTicksLeft <= 0 {
				_ = s.advanceLocked()
				return
			}
		}
	}
	s.broadcastLocked()
}

// onExpire arms the grace countdown. The clock fires this at most once per
// question, so advancement cannot double-trigger.
func (s *Session) onExpire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive || s.gracePending {
		return
	}
	s.gracePending = true
	s.graceJustArmed = true
	s.graceTicksLeft = defaultGraceTicks
}

// Outcome exposes the completed session's data to scoring and the ledger.
func (s *Session) Outcome() (domain.SessionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseCompleted {
		return domain.SessionOutcome{}, domain.ErrInvalidSessionState
	}
	return domain.SessionOutcome{
		Questions:      s.questions,
		Answers:        s.answers,
		Difficulty:     s.cfg.Difficulty,
		ElapsedSeconds: s.elapsedSeconds,
	}, nil
}

// Close terminates the session; subscribers are dropped and late ticks or
// fetch results become no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseLoading || s.phase == PhaseActive {
		s.phase = PhaseFailed
		s.failure = domain.ErrSessionNotFound
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Snapshot returns the current state for presentation.
func (s *Session) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving state snapshots after every mutation
// and tick. The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan StateSnapshot, func()) {
	ch := make(chan StateSnapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	snapshot := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Drop the stalest update so slow consumers never block the session.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (s *Session) snapshotLocked() StateSnapshot {
	snapshot := StateSnapshot{
		Phase:          s.phase,
		QuestionIndex:  s.index,
		QuestionCount:  len(s.questions),
		SelectedAnswer: -1,
		SecondsLeft:    s.clock.SecondsLeft(),
		TimeUp:         s.clock.Expired(),
		CorrectSoFar:   s.correctCountLocked(),
	}
	if s.phase == PhaseActive && s.index < len(s.questions) {
		question := s.questions[s.index]
		snapshot.Question = &question
		if selected, ok := s.answers[question.ID]; ok {
			snapshot.SelectedAnswer = selected
		}
	}
	if s.failure != nil {
		snapshot.Failure = s.failure.Error()
	}
	return snapshot
}

func (s *Session) correctCountLocked() int {
	correct := 0
	for _, q := range s.questions {
		if selected, ok := s.answers[q.ID]; ok && selected == q.CorrectAnswer {
			correct++
		}
	}
	return correct
}

func (s *Session) questionByIDLocked(questionID string) *domain.Question {
	for i := range s.questions {
		if s.questions[i].ID == questionID {
			return &s.questions[i]
		}
	}
	return nil
}
