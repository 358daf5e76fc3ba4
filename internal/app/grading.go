package app

import "live-quiz-service/internal/domain"

// DefaultPointsPerCorrect is the fixed award for a correct answer.
const DefaultPointsPerCorrect = 100

// answerIsCorrect compares a stored answer with the question's correct answer.
// True/false questions compare boolean meaning, so both true and "true" are
// accepted as the correct answer. Every other type requires the correct answer
// to be a string exactly equal to the stored answer.
func answerIsCorrect(q domain.Question, answer *string) bool {
	if answer == nil {
		return false
	}
	if q.Type == domain.QuestionTrueFalse {
		return (*answer == "true") == q.CorrectAnswer.Truthy()
	}
	want, ok := q.CorrectAnswer.Text()
	return ok && want == *answer
}

// gradeResult scores one player. The returned bool tells the caller whether
// points must be awarded.
func gradeResult(q domain.Question, p domain.Player) (domain.GradeResult, bool) {
	correct := answerIsCorrect(q, p.CurrentAnswer)
	return domain.GradeResult{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Answer:     p.CurrentAnswer,
		IsCorrect:  correct,
		NewScore:   p.Score,
	}, correct
}
