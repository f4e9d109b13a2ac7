package server

import (
	"context"

	"github.com/opentalon/leadgate/internal/analysis"
	"github.com/opentalon/leadgate/internal/orchestrator"
	"github.com/opentalon/leadgate/internal/store"
)

// LeadRepository stores and reads intake records.
type LeadRepository interface {
	InsertLead(ctx context.Context, rec store.LeadRecord) (int64, error)
	GetLead(ctx context.Context, id int64) (*store.LeadRecord, error)
	ListLeads(ctx context.Context, limit, offset int) ([]store.LeadRecord, error)
}

// AnalysisReader returns the stored analysis of a lead.
type AnalysisReader interface {
	GetAnalysis(ctx context.Context, leadID int64) (*analysis.Outcome, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, lead analysis.Lead, leadID int64) analysis.Outcome
}

// Inspector reports on the orchestrator and its gateways.
type Inspector interface {
	Info() orchestrator.Info
	Health() orchestrator.Health
}

// MailingList receives every new contact.
type MailingList interface {
	AddContact(ctx context.Context, rec store.LeadRecord) error
}

// Notifier alerts the sales team about leads with a requirement.
type Notifier interface {
	NotifyLead(ctx context.Context, rec store.LeadRecord) error
}

type noopMailingList struct{}

func (noopMailingList) AddContact(context.Context, store.LeadRecord) error { return nil }

type noopNotifier struct{}

func (noopNotifier) NotifyLead(context.Context, store.LeadRecord) error { return nil }
