package repository

import (
	"context"
	"log/slog"
	"sort"

	"underwriting-service/internal/models"
	"underwriting-service/internal/store"
	"underwriting-service/internal/workflow"
)

// QuestionRepository serves the underwriting question catalogue. The
// built-in reference dataset is registered with the gateway so an
// unreachable or empty questions collection still yields a usable gate.
type QuestionRepository struct {
	gateway *store.Gateway
}

func NewQuestionRepository(gateway *store.Gateway) *QuestionRepository {
	defaults := workflow.DefaultUnderwritingQuestions()
	docs := make([]map[string]any, 0, len(defaults))
	for _, q := range defaults {
		if doc, err := toDocument(q); err == nil {
			docs = append(docs, doc)
		}
	}
	gateway.RegisterDefaultDataset(CollectionUnderwritingQuestions, docs)
	return &QuestionRepository{gateway: gateway}
}

// Questions returns the active catalogue ordered by question id. Any
// retrieval problem falls back to the built-in dataset so the
// eligibility gate never runs without mandatory questions.
func (r *QuestionRepository) Questions(ctx context.Context) []models.UnderwritingQuestion {
	result := r.gateway.Query(ctx, CollectionUnderwritingQuestions, nil)
	if result.Status != store.QuerySuccess || len(result.Data) == 0 {
		if result.Status != store.QuerySuccess {
			slog.Warn("Question catalogue unavailable, using built-in dataset", "reason", result.Message)
		}
		return workflow.DefaultUnderwritingQuestions()
	}

	questions := make([]models.UnderwritingQuestion, 0, len(result.Data))
	for _, doc := range result.Data {
		q := models.UnderwritingQuestion{}
		if err := fromDocument(doc, &q); err != nil || q.ID == "" {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return workflow.DefaultUnderwritingQuestions()
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions
}
