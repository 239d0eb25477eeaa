package app

import "quiz-duel-service/internal/domain"

// Score maps one question's completed answer pair to the points each player
// earns. It is pure and symmetric: Score(a, b) == (x, y) iff Score(b, a) == (y, x).
//
// Rules:
//   - both correct: the faster answer earns 2, the slower 0; an exact
//     elapsed-time tie earns neither player anything.
//   - exactly one correct: it earns 2.
//   - both wrong without timing out: each earns 1 for the other's miss.
//   - a timeout hands the opponent 1 extra point, unless the opponent
//     timed out as well.
func Score(a, b domain.Answer) (int, int) {
	var da, db int
	switch {
	case a.IsCorrect && b.IsCorrect:
		switch {
		case a.ElapsedSeconds < b.ElapsedSeconds:
			da = 2
		case b.ElapsedSeconds < a.ElapsedSeconds:
			db = 2
		}
	case a.IsCorrect:
		da = 2
	case b.IsCorrect:
		db = 2
	default:
		if !a.TimedOut && !b.TimedOut {
			da, db = 1, 1
		}
	}
	if a.TimedOut && !b.TimedOut {
		db++
	}
	if b.TimedOut && !a.TimedOut {
		da++
	}
	return da, db
}
