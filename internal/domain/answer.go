package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar date encoding.
const DateLayout = "2006-01-02"

// Answer is a typed answer value. The set of implementations is closed:
// TextAnswer, SingleChoiceAnswer, MultipleChoiceAnswer, RatingAnswer,
// NumberAnswer, DateAnswer and LocationAnswer.
type Answer interface {
	Type() QuestionType
	Equal(other Answer) bool
	canonical() any
}

type TextAnswer struct{ Value string }

type SingleChoiceAnswer struct{ OptionID string }

// MultipleChoiceAnswer holds a sorted set of option ids.
type MultipleChoiceAnswer struct{ optionIDs []string }

type RatingAnswer struct{ Value int }

type NumberAnswer struct{ Value decimal.Decimal }

// DateAnswer holds a calendar date at midnight UTC.
type DateAnswer struct{ Value time.Time }

type LocationAnswer struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewMultipleChoiceAnswer deduplicates and sorts ids.
func NewMultipleChoiceAnswer(ids ...string) MultipleChoiceAnswer {
	set := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return MultipleChoiceAnswer{optionIDs: out}
}

// NewDateAnswer truncates t to its calendar date.
func NewDateAnswer(t time.Time) DateAnswer {
	y, m, d := t.Date()
	return DateAnswer{Value: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// OptionIDs returns a copy of the selected ids.
func (a MultipleChoiceAnswer) OptionIDs() []string {
	return append([]string(nil), a.optionIDs...)
}

// Has reports whether id was selected.
func (a MultipleChoiceAnswer) Has(id string) bool {
	i := sort.SearchStrings(a.optionIDs, id)
	return i < len(a.optionIDs) && a.optionIDs[i] == id
}

func (TextAnswer) Type() QuestionType           { return QuestionText }
func (SingleChoiceAnswer) Type() QuestionType   { return QuestionSingleChoice }
func (MultipleChoiceAnswer) Type() QuestionType { return QuestionMultipleChoice }
func (RatingAnswer) Type() QuestionType         { return QuestionRating }
func (NumberAnswer) Type() QuestionType         { return QuestionNumber }
func (DateAnswer) Type() QuestionType           { return QuestionDate }
func (LocationAnswer) Type() QuestionType       { return QuestionLocation }

func (a TextAnswer) canonical() any           { return a.Value }
func (a SingleChoiceAnswer) canonical() any   { return a.OptionID }
func (a MultipleChoiceAnswer) canonical() any { return a.OptionIDs() }
func (a RatingAnswer) canonical() any         { return a.Value }
func (a NumberAnswer) canonical() any         { return a.Value }
func (a DateAnswer) canonical() any           { return a.Value.Format(DateLayout) }
func (a LocationAnswer) canonical() any       { return a }

func (a TextAnswer) Equal(other Answer) bool {
	o, ok := other.(TextAnswer)
	return ok && o.Value == a.Value
}

func (a SingleChoiceAnswer) Equal(other Answer) bool {
	o, ok := other.(SingleChoiceAnswer)
	return ok && o.OptionID == a.OptionID
}

func (a MultipleChoiceAnswer) Equal(other Answer) bool {
	o, ok := other.(MultipleChoiceAnswer)
	if !ok || len(o.optionIDs) != len(a.optionIDs) {
		return false
	}
	for i := range a.optionIDs {
		if a.optionIDs[i] != o.optionIDs[i] {
			return false
		}
	}
	return true
}

func (a RatingAnswer) Equal(other Answer) bool {
	o, ok := other.(RatingAnswer)
	return ok && o.Value == a.Value
}

func (a NumberAnswer) Equal(other Answer) bool {
	o, ok := other.(NumberAnswer)
	return ok && o.Value.Equal(a.Value)
}

func (a DateAnswer) Equal(other Answer) bool {
	o, ok := other.(DateAnswer)
	return ok && o.Value.Equal(a.Value)
}

func (a LocationAnswer) Equal(other Answer) bool {
	o, ok := other.(LocationAnswer)
	return ok && o == a
}

type answerEnvelope struct {
	Type  QuestionType    `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalAnswer encodes a in its canonical discriminated form,
// e.g. {"type":"rating","value":4}.
func MarshalAnswer(a Answer) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("marshal answer: nil answer")
	}
	value, err := json.Marshal(a.canonical())
	if err != nil {
		return nil, fmt.Errorf("marshal %s answer: %w", a.Type(), err)
	}
	return json.Marshal(answerEnvelope{Type: a.Type(), Value: value})
}

// UnmarshalAnswer decodes the canonical form produced by MarshalAnswer.
// Only shape is checked; question-specific constraints need ParseAnswer.
func UnmarshalAnswer(data []byte) (Answer, error) {
	var env answerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &AnswerError{Kind: InvalidFormat, Msg: "malformed answer envelope"}
	}
	if !env.Type.Valid() {
		return nil, &AnswerError{Kind: TypeMismatch, Field: "type", Msg: fmt.Sprintf("unknown answer type %q", env.Type)}
	}
	return decodeValue(env.Type, env.Value)
}

// ParseAnswer turns raw external input into a typed answer for q.
// Accepted input is either the canonical envelope or, for older clients,
// a bare JSON value interpreted according to the question type.
func ParseAnswer(q Question, raw json.RawMessage) (Answer, error) {
	a, err := parseAnswer(q, raw)
	if err != nil {
		if ae, ok := err.(*AnswerError); ok {
			ae.QuestionID = q.ID
		}
		return nil, err
	}
	return a, nil
}

func parseAnswer(q Question, raw json.RawMessage) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, &AnswerError{Kind: InvalidFormat, Msg: "missing value"}
	}
	value := raw
	if raw[0] == '{' {
		var env answerEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Type != "" {
			if env.Type != q.Type {
				return nil, &AnswerError{Kind: TypeMismatch, Field: "type", Msg: fmt.Sprintf("expected %s answer, got %s", q.Type, env.Type)}
			}
			value = env.Value
		}
	}
	a, err := decodeValue(q.Type, value)
	if err != nil {
		return nil, err
	}
	return constrain(q, a)
}

func decodeValue(t QuestionType, raw json.RawMessage) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, &AnswerError{Kind: InvalidFormat, Msg: "missing value"}
	}
	switch t {
	case QuestionText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, &AnswerError{Kind: InvalidFormat, Msg: "expected a string"}
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, &AnswerError{Kind: InvalidFormat, Msg: "empty text"}
		}
		return TextAnswer{Value: s}, nil

	case QuestionSingleChoice:
		s, ok := scalarString(raw)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "option", Msg: "expected an option"}
		}
		return SingleChoiceAnswer{OptionID: strings.TrimSpace(s)}, nil

	case QuestionMultipleChoice:
		var ids []string
		if raw[0] == '[' {
			if err := json.Unmarshal(raw, &ids); err != nil {
				return nil, &AnswerError{Kind: InvalidFormat, Field: "options", Msg: "expected a list of options"}
			}
		} else if s, ok := scalarString(raw); ok {
			ids = strings.Split(s, ",")
		} else {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "options", Msg: "expected a list of options"}
		}
		cleaned := ids[:0]
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				cleaned = append(cleaned, id)
			}
		}
		if len(cleaned) == 0 {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "options", Msg: "no option selected"}
		}
		return NewMultipleChoiceAnswer(cleaned...), nil

	case QuestionRating:
		s, ok := scalarString(raw)
		if !ok {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "rating", Msg: "expected an integer"}
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "rating", Msg: fmt.Sprintf("%q is not an integer", s)}
		}
		return RatingAnswer{Value: n}, nil

	case QuestionNumber:
		s, ok := scalarString(raw)
		if !ok {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "number", Msg: "expected a number"}
		}
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "number", Msg: fmt.Sprintf("%q is not a number", s)}
		}
		return NumberAnswer{Value: d}, nil

	case QuestionDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "date", Msg: "expected a date string"}
		}
		d, err := ParseDate(s)
		if err != nil {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "date", Msg: err.Error()}
		}
		return d, nil

	case QuestionLocation:
		return decodeLocation(raw)
	}
	return nil, &AnswerError{Kind: TypeMismatch, Field: "type", Msg: fmt.Sprintf("unknown answer type %q", t)}
}

// ParseDate accepts YYYY-MM-DD and, for older clients, RFC 3339 timestamps.
func ParseDate(s string) (DateAnswer, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return NewDateAnswer(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewDateAnswer(t), nil
	}
	return DateAnswer{}, fmt.Errorf("%q is not a date (want %s)", s, DateLayout)
}

func decodeLocation(raw json.RawMessage) (Answer, error) {
	var lat, lng float64
	if raw[0] == '{' {
		var obj struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "location", Msg: "expected latitude and longitude"}
		}
		if obj.Latitude == nil {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "latitude", Msg: "missing latitude"}
		}
		if obj.Longitude == nil {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "longitude", Msg: "missing longitude"}
		}
		lat, lng = *obj.Latitude, *obj.Longitude
	} else {
		s, ok := scalarString(raw)
		parts := strings.Split(s, ",")
		if !ok || len(parts) != 2 {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "location", Msg: `expected "lat,long"`}
		}
		var err error
		if lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "latitude", Msg: "not a number"}
		}
		if lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
			return nil, &AnswerError{Kind: InvalidFormat, Field: "longitude", Msg: "not a number"}
		}
	}
	// NaN fails every comparison below, so non-finite values are checked first.
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return nil, &AnswerError{Kind: OutOfRange, Field: "latitude", Msg: "must be within [-90, 90]"}
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return nil, &AnswerError{Kind: OutOfRange, Field: "longitude", Msg: "must be within [-180, 180]"}
	}
	return LocationAnswer{Latitude: lat, Longitude: lng}, nil
}

// constrain checks a decoded answer against the question's options and bounds,
// normalizing option text to option ids.
func constrain(q Question, a Answer) (Answer, error) {
	switch v := a.(type) {
	case SingleChoiceAnswer:
		if len(q.Options) == 0 {
			return v, nil
		}
		opt, ok := q.Option(v.OptionID)
		if !ok {
			return nil, &AnswerError{Kind: OutOfRange, Field: "option", Msg: fmt.Sprintf("%q is not an option", v.OptionID)}
		}
		return SingleChoiceAnswer{OptionID: opt.ID}, nil
	case MultipleChoiceAnswer:
		if len(q.Options) == 0 {
			return v, nil
		}
		ids := make([]string, 0, len(v.optionIDs))
		for _, ref := range v.optionIDs {
			opt, ok := q.Option(ref)
			if !ok {
				return nil, &AnswerError{Kind: OutOfRange, Field: "options", Msg: fmt.Sprintf("%q is not an option", ref)}
			}
			ids = append(ids, opt.ID)
		}
		return NewMultipleChoiceAnswer(ids...), nil
	case RatingAnswer:
		lo, hi := q.RatingBounds()
		if v.Value < lo || v.Value > hi {
			return nil, &AnswerError{Kind: OutOfRange, Field: "rating", Msg: fmt.Sprintf("%d is outside [%d, %d]", v.Value, lo, hi)}
		}
		return v, nil
	case TextAnswer, NumberAnswer, DateAnswer, LocationAnswer:
		return v, nil
	}
	return nil, &AnswerError{Kind: TypeMismatch, Msg: fmt.Sprintf("unsupported answer %T", a)}
}

// scalarString returns the text of a JSON string or number literal.
func scalarString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

// AnswerSet maps question ids to recorded answers and serializes each
// answer in its canonical form.
type AnswerSet map[string]Answer

func (s AnswerSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s))
	for id, a := range s {
		data, err := MarshalAnswer(a)
		if err != nil {
			return nil, fmt.Errorf("answer for %s: %w", id, err)
		}
		out[id] = data
	}
	return json.Marshal(out)
}

func (s *AnswerSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set := make(AnswerSet, len(raw))
	for id, item := range raw {
		a, err := UnmarshalAnswer(item)
		if err != nil {
			return fmt.Errorf("answer for %s: %w", id, err)
		}
		set[id] = a
	}
	*s = set
	return nil
}
