package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opentalon/leadgate/internal/analysis"
)

const DefaultRedisPrefix = "leadgate:analysis:"

// RedisAnalysisStore mirrors analyses into one Redis hash per lead so other
// services can read them without database access.
type RedisAnalysisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisAnalysisStore(client redis.UniversalClient, prefix string) *RedisAnalysisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisAnalysisStore{client: client, prefix: prefix}
}

func (s *RedisAnalysisStore) key(leadID int64) string {
	return s.prefix + strconv.FormatInt(leadID, 10)
}

// SaveAnalysis overwrites every field of the lead's hash.
func (s *RedisAnalysisStore) SaveAnalysis(ctx context.Context, o analysis.Outcome) error {
	err := s.client.HSet(ctx, s.key(o.LeadID), map[string]any{
		"lead_id":          o.LeadID,
		"run_id":           o.RunID,
		"success":          strconv.FormatBool(o.Success),
		"matched_source":   string(o.MatchedSource),
		"match_level":      o.MatchLevel(),
		"tax_id":           o.TaxID,
		"sector":           o.Sector,
		"legal_name":       o.LegalName,
		"requirement_type": o.RequirementType,
		"confidence":       o.Confidence,
		"model_text":       o.ModelText,
		"error":            o.Error,
		"updated_at":       time.Now().UTC().Format(time.RFC3339),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis save analysis for lead %d: %w", o.LeadID, err)
	}
	return nil
}

func (s *RedisAnalysisStore) GetAnalysis(ctx context.Context, leadID int64) (*analysis.Outcome, error) {
	h, err := s.client.HGetAll(ctx, s.key(leadID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get analysis for lead %d: %w", leadID, err)
	}
	if len(h) == 0 {
		return nil, fmt.Errorf("analysis for lead %d: %w", leadID, ErrNotFound)
	}
	success, _ := strconv.ParseBool(h["success"])
	return &analysis.Outcome{
		LeadID:          leadID,
		RunID:           h["run_id"],
		Success:         success,
		MatchedSource:   analysis.Source(h["matched_source"]),
		TaxID:           h["tax_id"],
		Sector:          h["sector"],
		LegalName:       h["legal_name"],
		RequirementType: h["requirement_type"],
		Confidence:      h["confidence"],
		ModelText:       h["model_text"],
		Error:           h["error"],
	}, nil
}

// Fanout saves every outcome to all of its stores and joins their errors.
type Fanout []analysis.Store

func (f Fanout) SaveAnalysis(ctx context.Context, o analysis.Outcome) error {
	var errs []error
	for _, s := range f {
		if err := s.SaveAnalysis(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
