package mongo

import (
	"time"

	"survey-flow-service/internal/domain"
)

// Documents mirror the domain types with bson tags; determinants are stored
// as {kind, questionId} so they stay readable in the shell.

type surveyDocument struct {
	ID        string             `bson:"_id"`
	Title     string             `bson:"title"`
	Active    bool               `bson:"active"`
	Questions []questionDocument `bson:"questions"`
	Rules     []ruleDocument     `bson:"rules,omitempty"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type questionDocument struct {
	ID        string              `bson:"id"`
	Text      string              `bson:"text"`
	Type      string              `bson:"type"`
	Order     int                 `bson:"order"`
	Required  bool                `bson:"required"`
	Options   []optionDocument    `bson:"options,omitempty"`
	RatingMin int                 `bson:"ratingMin,omitempty"`
	RatingMax int                 `bson:"ratingMax,omitempty"`
	Default   determinantDocument `bson:"default"`
}

type optionDocument struct {
	ID   string `bson:"id"`
	Text string `bson:"text"`
}

type ruleDocument struct {
	ID               string              `bson:"id"`
	SourceQuestionID string              `bson:"sourceQuestionId"`
	Operator         string              `bson:"operator"`
	Values           []string            `bson:"values"`
	Target           determinantDocument `bson:"target"`
}

type determinantDocument struct {
	Kind       string `bson:"kind"`
	QuestionID string `bson:"questionId,omitempty"`
}

func fromDomain(s domain.Survey) surveyDocument {
	doc := surveyDocument{ID: s.ID, Title: s.Title, Active: s.Active}
	for _, q := range s.Questions {
		qd := questionDocument{
			ID:        q.ID,
			Text:      q.Text,
			Type:      string(q.Type),
			Order:     q.Order,
			Required:  q.Required,
			RatingMin: q.RatingMin,
			RatingMax: q.RatingMax,
			Default:   fromDeterminant(q.Default),
		}
		for _, o := range q.Options {
			qd.Options = append(qd.Options, optionDocument{ID: o.ID, Text: o.Text})
		}
		doc.Questions = append(doc.Questions, qd)
	}
	for _, r := range s.Rules {
		doc.Rules = append(doc.Rules, ruleDocument{
			ID:               r.ID,
			SourceQuestionID: r.SourceQuestionID,
			Operator:         string(r.Condition.Operator),
			Values:           r.Condition.Values,
			Target:           fromDeterminant(r.Target),
		})
	}
	return doc
}

func (d surveyDocument) toDomain() (domain.Survey, error) {
	s := domain.Survey{ID: d.ID, Title: d.Title, Active: d.Active}
	for _, qd := range d.Questions {
		def, err := qd.Default.toDomain()
		if err != nil {
			return domain.Survey{}, err
		}
		q := domain.Question{
			ID:        qd.ID,
			Text:      qd.Text,
			Type:      domain.QuestionType(qd.Type),
			Order:     qd.Order,
			Required:  qd.Required,
			RatingMin: qd.RatingMin,
			RatingMax: qd.RatingMax,
			Default:   def,
		}
		for _, o := range qd.Options {
			q.Options = append(q.Options, domain.Option{ID: o.ID, Text: o.Text})
		}
		s.Questions = append(s.Questions, q)
	}
	for _, rd := range d.Rules {
		target, err := rd.Target.toDomain()
		if err != nil {
			return domain.Survey{}, err
		}
		s.Rules = append(s.Rules, domain.Rule{
			ID:               rd.ID,
			SourceQuestionID: rd.SourceQuestionID,
			Condition:        domain.Condition{Operator: domain.Operator(rd.Operator), Values: rd.Values},
			Target:           target,
		})
	}
	return s, nil
}

func fromDeterminant(d domain.Determinant) determinantDocument {
	return determinantDocument{Kind: d.Kind().String(), QuestionID: d.Target()}
}

func (d determinantDocument) toDomain() (domain.Determinant, error) {
	if d.Kind == "" {
		return domain.DefaultOrder(), nil
	}
	kind, err := domain.ParseDeterminantKind(d.Kind)
	if err != nil {
		return domain.Determinant{}, err
	}
	return domain.NewDeterminant(kind, d.QuestionID)
}
