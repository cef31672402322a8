package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"survey-flow-service/internal/domain"
)

// SurveyStore keeps authored surveys in a MongoDB collection, one document per survey.
type SurveyStore struct {
	collection *mongo.Collection
}

func NewSurveyStore(db *mongo.Database) *SurveyStore {
	return &SurveyStore{collection: db.Collection("surveys")}
}

func (s *SurveyStore) LoadSurvey(ctx context.Context, surveyID string) (domain.Survey, error) {
	var doc surveyDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": surveyID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Survey{}, domain.ErrSurveyNotFound
	}
	if err != nil {
		return domain.Survey{}, fmt.Errorf("load survey %s: %w", surveyID, err)
	}
	return doc.toDomain()
}

func (s *SurveyStore) SaveSurvey(ctx context.Context, survey domain.Survey) error {
	doc := fromDomain(survey)
	doc.UpdatedAt = time.Now()
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": survey.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save survey %s: %w", survey.ID, err)
	}
	return nil
}

func (s *SurveyStore) SetActive(ctx context.Context, surveyID string, active bool) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": surveyID},
		bson.M{"$set": bson.M{"active": active, "updatedAt": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("set survey active %s: %w", surveyID, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrSurveyNotFound
	}
	return nil
}
