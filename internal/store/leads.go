package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opentalon/leadgate/internal/analysis"
)

// LeadRecord is a stored inbound lead. JSON names follow the intake form.
type LeadRecord struct {
	ID          int64     `json:"record_id"`
	FullName    string    `json:"nombre_apellido"`
	Company     string    `json:"empresa"`
	Phone       string    `json:"telefono2"`
	Email       string    `json:"correo"`
	TaxID       string    `json:"ruc_dni,omitempty"`
	Requirement string    `json:"treq_requerimiento,omitempty"`
	Channel     string    `json:"origen"`
	Advisor     string    `json:"asesor_tecnico,omitempty"`
	Notes       string    `json:"observacion,omitempty"`
	SubmittedAt string    `json:"submission_time,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Lead returns the fields the analysis works from.
func (r LeadRecord) Lead() analysis.Lead {
	return analysis.Lead{
		Company:     r.Company,
		TaxID:       r.TaxID,
		Requirement: r.Requirement,
		Channel:     r.Channel,
	}
}

// LeadStore reads and writes leads.
type LeadStore struct {
	db *DB
}

func NewLeadStore(db *DB) *LeadStore {
	return &LeadStore{db: db}
}

const leadColumns = `id, full_name, company, phone, email, tax_id, requirement, channel, advisor, notes, submitted_at, created_at`

// InsertLead stores rec and returns its id. CreatedAt is set when zero.
func (s *LeadStore) InsertLead(ctx context.Context, rec LeadRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := s.db.SQLDB().QueryRowContext(ctx, s.db.rebind(
		`INSERT INTO leads (full_name, company, phone, email, tax_id, requirement, channel, advisor, notes, submitted_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		rec.FullName, rec.Company, rec.Phone, rec.Email, rec.TaxID, rec.Requirement, rec.Channel,
		rec.Advisor, rec.Notes, rec.SubmittedAt, rec.CreatedAt.UTC().Format(time.RFC3339),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert lead: %w", err)
	}
	return id, nil
}

func (s *LeadStore) GetLead(ctx context.Context, id int64) (*LeadRecord, error) {
	row := s.db.SQLDB().QueryRowContext(ctx, s.db.rebind(`SELECT `+leadColumns+` FROM leads WHERE id = ?`), id)
	rec, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lead %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get lead %d: %w", id, err)
	}
	return rec, nil
}

// ListLeads returns leads newest first.
func (s *LeadStore) ListLeads(ctx context.Context, limit, offset int) ([]LeadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
}

// PendingAnalysis returns up to limit leads, oldest first, that have no
// successful analysis stored.
func (s *LeadStore) PendingAnalysis(ctx context.Context, limit int) ([]LeadRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx,
		`SELECT l.id, l.full_name, l.company, l.phone, l.email, l.tax_id, l.requirement, l.channel, l.advisor, l.notes, l.submitted_at, l.created_at
		 FROM leads l LEFT JOIN lead_analysis a ON a.lead_id = l.id
		 WHERE a.lead_id IS NULL OR a.success = 0
		 ORDER BY l.id ASC LIMIT ?`, limit)
}

func (s *LeadStore) query(ctx context.Context, q string, args ...any) ([]LeadRecord, error) {
	rows, err := s.db.SQLDB().QueryContext(ctx, s.db.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()
	var out []LeadRecord
	for rows.Next() {
		rec, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(sc scanner) (*LeadRecord, error) {
	var rec LeadRecord
	var createdAt string
	err := sc.Scan(&rec.ID, &rec.FullName, &rec.Company, &rec.Phone, &rec.Email, &rec.TaxID,
		&rec.Requirement, &rec.Channel, &rec.Advisor, &rec.Notes, &rec.SubmittedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rec, nil
}
