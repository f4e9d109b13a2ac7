package gateway

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Base implements Gateway over an ordered list of capabilities. It holds no
// mutable state after construction.
type Base struct {
	name        string
	description string
	caps        []Capability
	index       map[string]Capability
	logger      *zap.Logger
}

// NewBase builds a gateway. A nil logger disables logging. When two capabilities
// share a name the first one is indexed; Registry.Register reports the clash.
func NewBase(name, description string, logger *zap.Logger, caps ...Capability) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Base{
		name:        name,
		description: description,
		caps:        caps,
		index:       make(map[string]Capability, len(caps)),
		logger:      logger.With(zap.String("gateway", name)),
	}
	for _, c := range caps {
		n := c.Declaration().Name
		if _, dup := b.index[n]; !dup {
			b.index[n] = c
		}
	}
	return b
}

func (b *Base) Name() string        { return b.name }
func (b *Base) Description() string { return b.description }

func (b *Base) Declarations() []Declaration {
	out := make([]Declaration, 0, len(b.caps))
	for _, c := range b.caps {
		out = append(out, c.Declaration())
	}
	return out
}

func (b *Base) Has(capability string) bool {
	_, ok := b.index[capability]
	return ok
}

// Validate reports whether every required parameter of capability is present.
// Types are not checked.
func (b *Base) Validate(capability string, params Params) bool {
	c, ok := b.index[capability]
	if !ok {
		return false
	}
	return len(missingParams(c.Declaration(), params)) == 0
}

// Execute runs capability with params. Unknown capabilities, missing required
// parameters and panics inside the capability are all reported as failed results.
func (b *Base) Execute(ctx context.Context, capability string, params Params) (res Result) {
	log := b.logger.With(zap.String("capability", capability))
	if caller, ok := CallerFrom(ctx); ok {
		log = log.With(zap.String("session_id", caller.SessionID))
	}

	c, ok := b.index[capability]
	if !ok {
		log.Warn("capability not found")
		return Fail("capability not found: %s", capability)
	}
	if missing := missingParams(c.Declaration(), params); len(missing) > 0 {
		log.Warn("invalid parameters", zap.Strings("missing", missing))
		return Fail("invalid parameters for %s: missing %s", capability, strings.Join(missing, ", "))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("capability panicked", zap.Any("panic", r))
			res = Result{Error: fmt.Sprint(r)}
		}
	}()

	res = c.Execute(ctx, params)
	if !res.Success {
		log.Info("capability failed", zap.String("error", res.Error))
	}
	return res
}

func missingParams(d Declaration, params Params) []string {
	var missing []string
	for _, name := range d.RequiredParams() {
		if v, ok := params[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	return missing
}
