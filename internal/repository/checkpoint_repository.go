// Package repository maps the workflow's domain records onto the
// persistence gateway collections and the redis hot cache.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"underwriting-service/internal/config"
	"underwriting-service/internal/database/redis"
	"underwriting-service/internal/models"
	"underwriting-service/internal/store"
)

const (
	CollectionPolicyDrafts          = "policy_drafts"
	CollectionPoliciesIssued        = "policies_issued"
	CollectionUnderwritingQuestions = "underwriting_questions"
)

// Collections lists every gateway collection the service reads or
// writes, in the order they are probed at startup.
func Collections() []string {
	return []string{
		CollectionPolicyDrafts,
		CollectionPoliciesIssued,
		CollectionUnderwritingQuestions,
	}
}

const checkpointCachePrefix = "underwriting:checkpoint:"

// CheckpointRepository stores workflow checkpoints in the policy_drafts
// collection keyed by session id, with a redis read-through cache. The
// first save of a session allocates its quote number from the shared
// document sequence; the quote identifier and, later, the policy number
// are both derived from that one number.
type CheckpointRepository struct {
	gateway *store.Gateway
	seq     *store.SequenceAllocator
	cache   *redis.Client
	cfg     config.WorkflowConfig
}

func NewCheckpointRepository(gateway *store.Gateway, cache *redis.Client, cfg config.WorkflowConfig) *CheckpointRepository {
	return &CheckpointRepository{
		gateway: gateway,
		seq:     gateway.Sequences(),
		cache:   cache,
		cfg:     cfg,
	}
}

func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, cp *models.WorkflowCheckpoint) error {
	if cp.SessionID == "" {
		return fmt.Errorf("checkpoint has no session id")
	}

	if cp.QuoteNumber == 0 {
		number, err := r.seq.Next(ctx, CollectionPolicyDrafts, "quoteNumber", r.cfg.SequenceIncrement, r.cfg.SequenceStart)
		if err != nil {
			return fmt.Errorf("failed to allocate quote number: %w", err)
		}
		cp.QuoteNumber = number
		slog.Info("Allocated quote number", "session_id", cp.SessionID, "quote_number", number)
	}
	if cp.PolicyDraft != nil {
		cp.PolicyDraft.QuoteNumber = cp.QuoteNumber
		cp.PolicyDraft.QuoteID = fmt.Sprintf("%s%d", r.cfg.QuotePrefix, cp.QuoteNumber)
	}

	doc, err := toDocument(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := r.gateway.Upsert(ctx, CollectionPolicyDrafts, cp.SessionID, doc); err != nil {
		return fmt.Errorf("failed to persist checkpoint: %w", err)
	}

	r.cacheSet(ctx, cp)
	return nil
}

func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, sessionID string) (*models.WorkflowCheckpoint, bool) {
	if cp, ok := r.cacheGet(ctx, sessionID); ok {
		return cp, true
	}

	doc, ok := r.gateway.Get(ctx, CollectionPolicyDrafts, sessionID)
	if !ok {
		return nil, false
	}
	cp := &models.WorkflowCheckpoint{}
	if err := fromDocument(doc, cp); err != nil {
		slog.Warn("Stored checkpoint did not decode", "session_id", sessionID, "error", err)
		return nil, false
	}
	r.cacheSet(ctx, cp)
	return cp, true
}

// SaveIssuedPolicy writes the activated policy into the issued
// collection, keyed by policy number.
func (r *CheckpointRepository) SaveIssuedPolicy(ctx context.Context, cp *models.WorkflowCheckpoint) error {
	if cp.Issuance == nil || cp.Issuance.PolicyNumber == "" {
		return fmt.Errorf("checkpoint has no issued policy number")
	}
	doc, err := toDocument(cp)
	if err != nil {
		return fmt.Errorf("failed to encode issued policy: %w", err)
	}
	if err := r.gateway.Upsert(ctx, CollectionPoliciesIssued, cp.Issuance.PolicyNumber, doc); err != nil {
		return fmt.Errorf("failed to persist issued policy: %w", err)
	}
	return nil
}

// SweepStale marks in-flight checkpoints that have not advanced within
// the configured window as errored so they stop being resumable.
func (r *CheckpointRepository) SweepStale(ctx context.Context, now time.Time) (int, error) {
	result := r.gateway.Query(ctx, CollectionPolicyDrafts, map[string]any{
		"status": string(models.StatusInProgress),
	})
	if result.Status != store.QuerySuccess {
		return 0, fmt.Errorf("failed to list in-flight checkpoints: %s", result.Message)
	}

	cutoff := now.Add(-r.cfg.StaleAfter)
	swept := 0
	for _, doc := range result.Data {
		cp := &models.WorkflowCheckpoint{}
		if err := fromDocument(doc, cp); err != nil {
			continue
		}
		if cp.LastUpdated.IsZero() || cp.LastUpdated.After(cutoff) {
			continue
		}

		cp.Status = models.StatusError
		cp.Failure = &models.StageFailure{
			Stage:      cp.Stage,
			Message:    fmt.Sprintf("session abandoned, no progress since %s", cp.LastUpdated.Format(time.RFC3339)),
			OccurredAt: now,
		}
		cp.LastUpdated = now
		if err := r.SaveCheckpoint(ctx, cp); err != nil {
			slog.Warn("Failed to expire stale checkpoint", "session_id", cp.SessionID, "error", err)
			continue
		}
		swept++
	}
	return swept, nil
}

func (r *CheckpointRepository) cacheSet(ctx context.Context, cp *models.WorkflowCheckpoint) {
	if r.cache == nil {
		return
	}
	payload, err := json.Marshal(cp)
	if err != nil {
		return
	}
	if err := r.cache.GetClient().Set(ctx, checkpointCachePrefix+cp.SessionID, payload, r.cfg.StaleAfter).Err(); err != nil {
		slog.Warn("Failed to cache checkpoint", "session_id", cp.SessionID, "error", err)
	}
}

func (r *CheckpointRepository) cacheGet(ctx context.Context, sessionID string) (*models.WorkflowCheckpoint, bool) {
	if r.cache == nil {
		return nil, false
	}
	payload, err := r.cache.GetClient().Get(ctx, checkpointCachePrefix+sessionID).Bytes()
	if err != nil {
		return nil, false
	}
	cp := &models.WorkflowCheckpoint{}
	if err := json.Unmarshal(payload, cp); err != nil {
		return nil, false
	}
	return cp, true
}

// toDocument converts a typed record into the loosely-typed document
// shape the gateway stores.
func toDocument(v any) (map[string]any, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDocument(doc map[string]any, out any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}
