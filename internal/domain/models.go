package domain

import "time"

// Difficulty selects the question pool and the per-question time limit.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty normalizes a raw difficulty string, defaulting to medium.
func ParseDifficulty(raw string) Difficulty {
	switch Difficulty(raw) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return Difficulty(raw)
	}
	return DifficultyMedium
}

// Question is one multiple-choice question with its options already shuffled.
// CorrectAnswer indexes into Options and stays valid post-shuffle.
type Question struct {
	ID            string     `json:"id"`
	Text          string     `json:"question"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correctAnswer"`
	Difficulty    Difficulty `json:"difficulty"`
	Category      string     `json:"category"`
}

// AnswerMap records the selected option index per question ID.
// One entry per question; re-answering overwrites.
type AnswerMap map[string]int

// SessionConfig is derived once at session start from the difficulty policy
// table and stays immutable for the session's lifetime.
type SessionConfig struct {
	Difficulty       Difficulty `json:"difficulty" yaml:"difficulty"`
	QuestionCount    int        `json:"questionCount" yaml:"questions"`
	TimeLimitSeconds int        `json:"timeLimitSeconds" yaml:"timeLimit"`
}

// ScoreResult is the smart-score breakdown for one completed session.
// Percentage is computed against the question count, not a fixed 100, so
// bonus-heavy runs can legitimately exceed 100.
type ScoreResult struct {
	BaseScore   int `json:"baseScore"`
	BonusPoints int `json:"bonusPoints"`
	TimeBonus   int `json:"timeBonus"`
	TotalScore  int `json:"totalScore"`
	Percentage  int `json:"percentage"`
}

// HighScoreEntry is one persisted ledger row. Timestamp is unique per attempt
// so identical results still produce distinct entries.
type HighScoreEntry struct {
	Score      int        `json:"score"`
	Total      int        `json:"total"`
	Percentage int        `json:"percentage"`
	Difficulty Difficulty `json:"difficulty"`
	Timestamp  int64      `json:"timestamp"`
	Date       time.Time  `json:"date"`
}

// SessionOutcome is what a completed session hands to scoring and the ledger.
type SessionOutcome struct {
	Questions      []Question `json:"questions"`
	Answers        AnswerMap  `json:"answers"`
	Difficulty     Difficulty `json:"difficulty"`
	ElapsedSeconds float64    `json:"elapsedSeconds"`
}
