package domain

// QuestionType names the kind of answer a question collects.
type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionRating         QuestionType = "rating"
	QuestionNumber         QuestionType = "number"
	QuestionDate           QuestionType = "date"
	QuestionLocation       QuestionType = "location"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionSingleChoice, QuestionMultipleChoice,
		QuestionRating, QuestionNumber, QuestionDate, QuestionLocation:
		return true
	}
	return false
}

// IsChoice reports whether the type selects from the question's options.
func (t QuestionType) IsChoice() bool {
	return t == QuestionSingleChoice || t == QuestionMultipleChoice
}

// Rating bounds used when a rating question leaves them unset.
const (
	DefaultRatingMin = 1
	DefaultRatingMax = 5
)

// Option is a selectable answer of a choice question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a node of the survey flow graph.
type Question struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Type      QuestionType `json:"type"`
	Order     int          `json:"order"`
	Required  bool         `json:"required"`
	Options   []Option     `json:"options,omitempty"`
	RatingMin int          `json:"ratingMin,omitempty"`
	RatingMax int          `json:"ratingMax,omitempty"`
	// Default applies when none of the question's rules match.
	Default Determinant `json:"default"`
}

// RatingBounds returns the configured rating range, falling back to the
// defaults when neither bound is set. A lone RatingMax keeps a minimum of 0.
func (q Question) RatingBounds() (int, int) {
	lo, hi := q.RatingMin, q.RatingMax
	if lo == 0 && hi == 0 {
		return DefaultRatingMin, DefaultRatingMax
	}
	return lo, hi
}

// Option looks up an option by id, or by display text as a fallback.
func (q Question) Option(ref string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == ref {
			return opt, true
		}
	}
	for _, opt := range q.Options {
		if opt.Text == ref {
			return opt, true
		}
	}
	return Option{}, false
}

// Operator is a comparison applied by a rule condition.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpContains           Operator = "contains"
	OpIn                 Operator = "in"
	OpGreaterThan        Operator = "gt"
	OpGreaterThanOrEqual Operator = "gte"
	OpLessThan           Operator = "lt"
	OpLessThanOrEqual    Operator = "lte"
)

// IsOrdering reports whether the operator compares magnitudes.
func (o Operator) IsOrdering() bool {
	switch o {
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return true
	}
	return false
}

// Condition compares a submitted answer against one or more values.
// In takes the whole set; every other operator uses a single value.
type Condition struct {
	Operator Operator `json:"operator"`
	Values   []string `json:"values"`
}

// Rule is an outgoing conditional edge of a question. Rules of the same
// source question are evaluated in the order they appear in Survey.Rules.
type Rule struct {
	ID               string      `json:"id"`
	SourceQuestionID string      `json:"sourceQuestionId"`
	Condition        Condition   `json:"condition"`
	Target           Determinant `json:"target"`
}

// Survey is the authoring model of a conditional questionnaire.
type Survey struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Active    bool       `json:"active"`
	Questions []Question `json:"questions"`
	Rules     []Rule     `json:"rules,omitempty"`
}
