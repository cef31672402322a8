package domain

import (
	"encoding/json"
	"fmt"
)

// DeterminantKind tags the variant of a Determinant.
type DeterminantKind int

const (
	// FollowDefaultOrder defers to the survey's sequential order.
	FollowDefaultOrder DeterminantKind = iota
	// GoToQuestion continues at a specific question.
	GoToQuestion
	// EndSurvey completes the response.
	EndSurvey
)

func (k DeterminantKind) String() string {
	switch k {
	case GoToQuestion:
		return "goto"
	case EndSurvey:
		return "end"
	default:
		return "default"
	}
}

// ParseDeterminantKind is the inverse of DeterminantKind.String.
func ParseDeterminantKind(s string) (DeterminantKind, error) {
	switch s {
	case "goto":
		return GoToQuestion, nil
	case "end":
		return EndSurvey, nil
	case "default", "":
		return FollowDefaultOrder, nil
	}
	return 0, fmt.Errorf("unknown determinant kind %q", s)
}

// Determinant describes what happens after a question has been answered.
// The zero value is FollowDefaultOrder.
type Determinant struct {
	kind       DeterminantKind
	questionID string
}

// GoTo continues at questionID.
func GoTo(questionID string) Determinant {
	return Determinant{kind: GoToQuestion, questionID: questionID}
}

// End completes the response.
func End() Determinant {
	return Determinant{kind: EndSurvey}
}

// DefaultOrder defers to the next question by ordering index.
func DefaultOrder() Determinant {
	return Determinant{kind: FollowDefaultOrder}
}

// NewDeterminant builds a determinant from its discriminated form.
func NewDeterminant(kind DeterminantKind, questionID string) (Determinant, error) {
	switch kind {
	case GoToQuestion:
		if questionID == "" {
			return Determinant{}, fmt.Errorf("goto determinant requires a question id")
		}
		return GoTo(questionID), nil
	case EndSurvey:
		return End(), nil
	case FollowDefaultOrder:
		return DefaultOrder(), nil
	}
	return Determinant{}, fmt.Errorf("unknown determinant kind %d", kind)
}

func (d Determinant) Kind() DeterminantKind { return d.kind }

// Target returns the GoTo question id, or "" for other variants.
func (d Determinant) Target() string {
	if d.kind != GoToQuestion {
		return ""
	}
	return d.questionID
}

// Equal reports whether both determinants have the same variant and payload.
func (d Determinant) Equal(other Determinant) bool {
	return d.kind == other.kind && d.Target() == other.Target()
}

func (d Determinant) String() string {
	if d.kind == GoToQuestion {
		return "goto(" + d.questionID + ")"
	}
	return d.kind.String()
}

// MatchDeterminant switches over the three variants of d.
func MatchDeterminant[T any](d Determinant, goTo func(questionID string) T, end func() T, followDefault func() T) T {
	switch d.kind {
	case GoToQuestion:
		return goTo(d.questionID)
	case EndSurvey:
		return end()
	default:
		return followDefault()
	}
}

type determinantJSON struct {
	Kind       string `json:"kind"`
	QuestionID string `json:"questionId,omitempty"`
}

func (d Determinant) MarshalJSON() ([]byte, error) {
	return json.Marshal(determinantJSON{Kind: d.kind.String(), QuestionID: d.Target()})
}

func (d *Determinant) UnmarshalJSON(data []byte) error {
	var raw determinantJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode determinant: %w", err)
	}
	kind, err := ParseDeterminantKind(raw.Kind)
	if err != nil {
		return err
	}
	parsed, err := NewDeterminant(kind, raw.QuestionID)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
