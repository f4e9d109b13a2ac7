package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opentalon/leadgate/internal/analysis"
)

// AnalysisStore keeps one analysis row per lead.
type AnalysisStore struct {
	db *DB
}

func NewAnalysisStore(db *DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

// SaveAnalysis upserts o keyed by its lead id.
func (s *AnalysisStore) SaveAnalysis(ctx context.Context, o analysis.Outcome) error {
	_, err := s.db.SQLDB().ExecContext(ctx, s.db.rebind(
		`INSERT INTO lead_analysis (lead_id, run_id, success, matched_source, match_level, tax_id, sector, legal_name,
		   requirement_type, confidence, model_text, error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (lead_id) DO UPDATE SET
		   run_id = excluded.run_id,
		   success = excluded.success,
		   matched_source = excluded.matched_source,
		   match_level = excluded.match_level,
		   tax_id = excluded.tax_id,
		   sector = excluded.sector,
		   legal_name = excluded.legal_name,
		   requirement_type = excluded.requirement_type,
		   confidence = excluded.confidence,
		   model_text = excluded.model_text,
		   error = excluded.error,
		   updated_at = excluded.updated_at`),
		o.LeadID, o.RunID, boolInt(o.Success), string(o.MatchedSource), o.MatchLevel(), o.TaxID, o.Sector, o.LegalName,
		o.RequirementType, o.Confidence, o.ModelText, o.Error, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save analysis for lead %d: %w", o.LeadID, err)
	}
	return nil
}

func (s *AnalysisStore) GetAnalysis(ctx context.Context, leadID int64) (*analysis.Outcome, error) {
	var (
		o       analysis.Outcome
		success int
		source  string
	)
	err := s.db.SQLDB().QueryRowContext(ctx, s.db.rebind(
		`SELECT lead_id, run_id, success, matched_source, tax_id, sector, legal_name, requirement_type, confidence, model_text, error
		 FROM lead_analysis WHERE lead_id = ?`), leadID,
	).Scan(&o.LeadID, &o.RunID, &success, &source, &o.TaxID, &o.Sector, &o.LegalName,
		&o.RequirementType, &o.Confidence, &o.ModelText, &o.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis for lead %d: %w", leadID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis for lead %d: %w", leadID, err)
	}
	o.Success = success != 0
	o.MatchedSource = analysis.Source(source)
	return &o, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
