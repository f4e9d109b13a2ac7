package orchestrator

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opentalon/leadgate/internal/gateway"
	"github.com/opentalon/leadgate/internal/metrics"
	"github.com/opentalon/leadgate/internal/model"
)

const DefaultMaxIterations = 10

type Option func(*Orchestrator)

func WithSystemInstruction(s string) Option {
	return func(o *Orchestrator) { o.systemInstruction = s }
}

func WithGeneration(g model.GenerationConfig) Option {
	return func(o *Orchestrator) { o.generation = g }
}

func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.guard = NewGuard(d) }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithModelName sets the model name reported by Info and Health.
func WithModelName(name string) Option {
	return func(o *Orchestrator) { o.modelName = name }
}

// Orchestrator drives the function-calling loop between the model and the
// registered gateways. It keeps no per-run state, so concurrent runs are independent.
type Orchestrator struct {
	client            model.Client
	registry          *gateway.Registry
	systemInstruction string
	generation        model.GenerationConfig
	maxIterations     int
	guard             *Guard
	logger            *zap.Logger
	metrics           *metrics.Metrics
	modelName         string
}

func New(client model.Client, registry *gateway.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:        client,
		registry:      registry,
		maxIterations: DefaultMaxIterations,
		guard:         NewGuard(DefaultCallTimeout),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type RunRequest struct {
	Message string
	// History holds prior turns supplied by the caller; it is copied, never modified.
	History []model.Turn
	// SystemInstruction overrides the orchestrator default when non-empty.
	SystemInstruction string
	// MaxIterations overrides the orchestrator default when positive.
	MaxIterations int
}

// CallRecord pairs a function call with its result and the gateway that served it.
type CallRecord struct {
	Call    model.FunctionCall   `json:"call"`
	Result  model.FunctionResult `json:"result"`
	Gateway string               `json:"gateway,omitempty"`
}

type RunResult struct {
	RunID           string        `json:"run_id"`
	Success         bool          `json:"success"`
	FinalText       string        `json:"final_text,omitempty"`
	GatewaysInvoked []string      `json:"gateways_invoked,omitempty"`
	Calls           []CallRecord  `json:"calls_made,omitempty"`
	TurnCount       int           `json:"turn_count"`
	Conversation    []model.Turn  `json:"conversation,omitempty"`
	Usage           model.Usage   `json:"usage"`
	Duration        time.Duration `json:"duration"`
	Error           string        `json:"error,omitempty"`
}

// Run executes one conversation. It never returns a Go error: model failures and
// an exhausted iteration budget are reported through RunResult.Error.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) *RunResult {
	start := time.Now()
	res := &RunResult{RunID: uuid.New().String()}
	log := o.logger.With(zap.String("run_id", res.RunID))

	maxIter := o.maxIterations
	if req.MaxIterations > 0 {
		maxIter = req.MaxIterations
	}
	system := o.systemInstruction
	if req.SystemInstruction != "" {
		system = req.SystemInstruction
	}

	conv := make([]model.Turn, 0, len(req.History)+1+2*maxIter)
	conv = append(conv, req.History...)
	conv = append(conv, model.UserText(req.Message))

	manifest := o.registry.Manifest()
	invoked := make(map[string]bool)
	callSeq := 0

	for i := 0; i < maxIter; i++ {
		log.Debug("requesting model", zap.Int("iteration", i+1), zap.Int("turns", len(conv)))
		resp, err := o.client.Generate(ctx, &model.Request{
			Turns:             conv,
			Tools:             manifest,
			SystemInstruction: system,
			Generation:        o.generation,
		})
		if err != nil {
			return o.finish(log, res, start, fmt.Errorf("model request failed on iteration %d: %w", i+1, err))
		}
		res.TurnCount = i + 1
		res.Usage = res.Usage.Add(resp.Usage)

		turn := assignCallIDs(resp.Turn, &callSeq)
		conv = append(conv, turn)

		calls := turn.FunctionCalls()
		if len(calls) == 0 {
			res.Success = true
			res.FinalText = turn.Text()
			res.Conversation = conv
			return o.finish(log, res, start, nil)
		}

		results := make([]model.Part, 0, len(calls))
		for _, call := range calls {
			rec := o.dispatch(ctx, log, call)
			res.Calls = append(res.Calls, rec)
			if rec.Gateway != "" && !invoked[rec.Gateway] {
				invoked[rec.Gateway] = true
				res.GatewaysInvoked = append(res.GatewaysInvoked, rec.Gateway)
			}
			result := rec.Result
			results = append(results, model.Part{FunctionResult: &result})
		}
		conv = append(conv, model.Turn{Role: model.RoleTool, Parts: results})
	}

	return o.finish(log, res, start, fmt.Errorf("exceeded maximum iterations (%d)", maxIter))
}

func (o *Orchestrator) finish(log *zap.Logger, res *RunResult, start time.Time, err error) *RunResult {
	res.Duration = time.Since(start)
	if err != nil {
		res.Success = false
		res.Error = err.Error()
		res.Conversation = nil
		res.Calls = nil
		res.GatewaysInvoked = nil
		log.Warn("run failed", zap.Int("turn_count", res.TurnCount), zap.Error(err))
	} else {
		log.Info("run completed",
			zap.Int("turn_count", res.TurnCount),
			zap.Int("calls", len(res.Calls)),
			zap.Strings("gateways", res.GatewaysInvoked),
			zap.Int32("total_tokens", res.Usage.TotalTokens),
			zap.Duration("duration", res.Duration))
	}
	o.metrics.ObserveRun(res.Success, res.TurnCount, res.Duration)
	return res
}

func (o *Orchestrator) dispatch(ctx context.Context, log *zap.Logger, call model.FunctionCall) CallRecord {
	rec := CallRecord{Call: call}
	g, ok := o.registry.Resolve(call.Name)
	if !ok {
		log.Warn("no gateway for capability", zap.String("capability", call.Name))
		rec.Result = model.FunctionResult{ID: call.ID, Name: call.Name, Error: "no gateway for " + call.Name}
		o.metrics.CapabilityCall(call.Name, false)
		return rec
	}

	rec.Gateway = g.Name()
	log.Debug("executing capability", zap.String("gateway", rec.Gateway), zap.String("capability", call.Name))
	r := o.guard.Execute(ctx, g, call.Name, gateway.Params(maps.Clone(call.Args)))
	rec.Result = model.FunctionResult{
		ID:      call.ID,
		Name:    call.Name,
		Success: r.Success,
		Payload: r.Payload,
		Error:   r.Error,
	}
	o.metrics.CapabilityCall(call.Name, r.Success)
	return rec
}

// Invoke runs one capability directly, bypassing the model. The guard and
// routing rules are the same as inside Run.
func (o *Orchestrator) Invoke(ctx context.Context, capability string, params gateway.Params) (gateway.Result, error) {
	g, ok := o.registry.Resolve(capability)
	if !ok {
		return gateway.Result{}, fmt.Errorf("no gateway for %s", capability)
	}
	r := o.guard.Execute(ctx, g, capability, params)
	o.metrics.CapabilityCall(capability, r.Success)
	return r, nil
}

// assignCallIDs gives every function call in turn an ID so results can be paired
// with calls even when the endpoint does not issue IDs.
func assignCallIDs(turn model.Turn, seq *int) model.Turn {
	out := model.Turn{Role: model.RoleModel, Parts: make([]model.Part, len(turn.Parts))}
	for i, p := range turn.Parts {
		if p.FunctionCall != nil {
			*seq++
			fc := *p.FunctionCall
			if fc.ID == "" {
				fc.ID = fmt.Sprintf("call-%d", *seq)
			}
			p.FunctionCall = &fc
		}
		out.Parts[i] = p
	}
	return out
}
