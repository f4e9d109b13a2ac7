package analysis

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/opentalon/leadgate/internal/gateway"
	"github.com/opentalon/leadgate/internal/gateway/leads"
	"github.com/opentalon/leadgate/internal/metrics"
	"github.com/opentalon/leadgate/internal/orchestrator"
)

// ErrInsufficientData is reported when a lead has no company, tax id or requirement.
var ErrInsufficientData = errors.New("insufficient data to analyze lead")

// Runner runs one orchestrated conversation.
type Runner interface {
	Run(ctx context.Context, req orchestrator.RunRequest) *orchestrator.RunResult
}

// Store persists outcomes. SaveAnalysis must be an idempotent upsert keyed by lead id.
type Store interface {
	SaveAnalysis(ctx context.Context, o Outcome) error
}

const DefaultMaxIterations = 10

type Option func(*Service)

func WithStore(s Store) Option {
	return func(svc *Service) { svc.store = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(svc *Service) { svc.metrics = m }
}

func WithMaxIterations(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.maxIterations = n
		}
	}
}

// WithSystemInstruction replaces the leads gateway instruction.
func WithSystemInstruction(s string) Option {
	return func(svc *Service) {
		if s != "" {
			svc.instruction = s
		}
	}
}

type Service struct {
	runner        Runner
	store         Store
	logger        *zap.Logger
	metrics       *metrics.Metrics
	maxIterations int
	instruction   string
}

func NewService(runner Runner, opts ...Option) *Service {
	s := &Service{
		runner:        runner,
		logger:        zap.NewNop(),
		maxIterations: DefaultMaxIterations,
		instruction:   leads.SystemInstruction,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs the lead through the orchestrator and stores the outcome of a
// successful run. It never fails: run errors are reported in Outcome.Error and
// persistence errors are only logged.
func (s *Service) Analyze(ctx context.Context, lead Lead, leadID int64) Outcome {
	log := s.logger.With(zap.Int64("lead_id", leadID))
	lead.Requirement = CleanText(lead.Requirement)

	if !lead.Sufficient() {
		log.Info("lead skipped", zap.Error(ErrInsufficientData))
		return Outcome{LeadID: leadID, MatchedSource: SourceNone, Error: ErrInsufficientData.Error()}
	}

	ctx = gateway.WithCaller(ctx, gateway.Caller{SessionID: "lead-" + strconv.FormatInt(leadID, 10)})
	run := s.runner.Run(ctx, orchestrator.RunRequest{
		Message:           BuildTaskMessage(lead),
		SystemInstruction: s.instruction,
		MaxIterations:     s.maxIterations,
	})

	var out Outcome
	if run.Success {
		out = Interpret(run.Calls)
		out.Success = true
		out.ModelText = run.FinalText
	} else {
		out = Outcome{MatchedSource: SourceNone, Error: run.Error}
	}
	out.LeadID = leadID
	out.RunID = run.RunID
	log = log.With(zap.String("run_id", run.RunID))

	if out.Success {
		s.metrics.Analysis(string(out.MatchedSource))
		log.Info("lead analyzed",
			zap.String("matched_source", string(out.MatchedSource)),
			zap.String("requirement_type", out.RequirementType),
			zap.String("confidence", out.Confidence))
	} else {
		s.metrics.Analysis("failed")
		log.Warn("lead analysis failed", zap.String("error", out.Error))
	}

	if s.store != nil && out.Success {
		if err := s.store.SaveAnalysis(ctx, out); err != nil {
			log.Error("persist analysis", zap.Error(err))
		}
	}
	return out
}
