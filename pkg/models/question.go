package models

// Question represents a single multiple choice question from the bank
type Question struct {
	ID            int64  `json:"id" db:"id"`
	Category      string `json:"category" db:"category"`
	Difficulty    int    `json:"difficulty" db:"difficulty"` // 1 is the easiest tier
	Text          string `json:"question" db:"question"`
	Option1       string `json:"option1" db:"option1"`
	Option2       string `json:"option2" db:"option2"`
	Option3       string `json:"option3" db:"option3"`
	Option4       string `json:"option4" db:"option4"`
	CorrectOption int    `json:"correct_option" db:"correct_option"` // 1-based index into the options
	Role          string `json:"role" db:"role"`
}

// Options returns the four option texts in stored order
func (q Question) Options() []string {
	return []string{q.Option1, q.Option2, q.Option3, q.Option4}
}

// CorrectAnswer returns the text of the correct option, or "" if the index is out of range
func (q Question) CorrectAnswer() string {
	opts := q.Options()
	if q.CorrectOption < 1 || q.CorrectOption > len(opts) {
		return ""
	}
	return opts[q.CorrectOption-1]
}

// QuestionFilter narrows a question query. Nil fields are not filtered on.
type QuestionFilter struct {
	Role       *string
	Difficulty *int
	ExcludeIDs []int64
}
