package app

import (
	"math"

	"trivia-quiz-service/internal/domain"
)

// Multipliers maps a difficulty to its per-correct-answer bonus weight.
type Multipliers map[domain.Difficulty]float64

// DefaultMultipliers returns the standard difficulty bonus table.
func DefaultMultipliers() Multipliers {
	return Multipliers{
		domain.DifficultyEasy:   1.0,
		domain.DifficultyMedium: 1.2,
		domain.DifficultyHard:   1.5,
	}
}

// referenceSecondsPerQuestion is the average answer time at which the time
// bonus reaches zero.
const referenceSecondsPerQuestion = 30.0

// ComputeScore derives the smart score for a finished session: one base point
// per correct answer, a difficulty-weighted bonus per correct answer, and a
// time bonus for averaging under 30 seconds per question.
//
// Reported fields are rounded, but TotalScore and Percentage come from the
// raw (unrounded) sums. Percentage divides by the question count rather than
// a fixed 100, so heavily bonused runs can exceed 100; that overflow is kept
// as-is. Callers must ensure len(questions) > 0.
func ComputeScore(questions []domain.Question, answers domain.AnswerMap, difficulty domain.Difficulty, elapsedSeconds float64, table Multipliers) domain.ScoreResult {
	if table == nil {
		table = DefaultMultipliers()
	}
	multiplier, ok := table[difficulty]
	if !ok {
		multiplier = 1.0
	}

	baseScore := 0
	bonusPoints := 0.0
	for _, q := range questions {
		if selected, answered := answers[q.ID]; answered && selected == q.CorrectAnswer {
			baseScore++
			bonusPoints += multiplier
		}
	}

	averagePerQuestion := elapsedSeconds / float64(len(questions))
	timeBonus := math.Max(0, (referenceSecondsPerQuestion-averagePerQuestion)*0.1)

	total := float64(baseScore) + bonusPoints + timeBonus
	return domain.ScoreResult{
		BaseScore:   baseScore,
		BonusPoints: int(math.Round(bonusPoints)),
		TimeBonus:   int(math.Round(timeBonus)),
		TotalScore:  int(math.Round(total)),
		Percentage:  int(math.Round(total / float64(len(questions)) * 100)),
	}
}

// scoreBands holds per-difficulty result messages keyed by the minimum
// percentage that earns them.
var scoreBands = []int{90, 80, 70, 60, 50}

var scoreMessages = map[domain.Difficulty]map[int]string{
	domain.DifficultyEasy: {
		90: "Outstanding! You're a trivia master!",
		80: "Excellent work! You really know your stuff!",
		70: "Great job! You're getting the hang of it!",
		60: "Good effort! Keep practicing!",
		50: "Not bad! You're on the right track!",
	},
	domain.DifficultyMedium: {
		90: "Incredible! You're a true expert!",
		80: "Fantastic! You really know your stuff!",
		70: "Well done! You're quite knowledgeable!",
		60: "Good work! You're getting there!",
		50: "Not bad! Keep challenging yourself!",
	},
	domain.DifficultyHard: {
		90: "Legendary! You're absolutely brilliant!",
		80: "Amazing! You're a true genius!",
		70: "Impressive! You really know your stuff!",
		60: "Good job! Hard questions are tough!",
		50: "Respectable! Hard mode is challenging!",
	},
}

// ScoreMessage picks the result message for a percentage and difficulty.
func ScoreMessage(percentage int, difficulty domain.Difficulty) string {
	messages, ok := scoreMessages[difficulty]
	if !ok {
		messages = scoreMessages[domain.DifficultyMedium]
	}
	for _, band := range scoreBands {
		if percentage >= band {
			return messages[band]
		}
	}
	return "Keep trying! Every expert was once a beginner!"
}
