package classify

import (
	"context"
	"log/slog"

	"github.com/nhle/mail-manager/internal/model"
	"github.com/nhle/mail-manager/internal/privacy"
)

// Engine routes each message to one processor. The detected sensitivity
// tier always wins over the configured mode: extreme disables models
// entirely and high confines processing to the local model, regardless
// of what the configuration asks for.
type Engine struct {
	mode model.AIMode

	rule   Processor
	local  Processor
	api    Processor
	hybrid Processor

	// hasAPIKey gates the api mode; without a credential the engine
	// quietly falls back to the local processor.
	hasAPIKey bool

	logger *slog.Logger
}

// EngineOptions carries the processors an Engine dispatches to. Rule
// must be set; the others may be nil when their mode is never selected.
type EngineOptions struct {
	Mode      model.AIMode
	Rule      Processor
	Local     Processor
	API       Processor
	Hybrid    Processor
	HasAPIKey bool
	Logger    *slog.Logger
}

// NewEngine builds the policy engine from its processors.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		mode:      opts.Mode,
		rule:      opts.Rule,
		local:     opts.Local,
		api:       opts.API,
		hybrid:    opts.Hybrid,
		hasAPIKey: opts.HasAPIKey,
		logger:    logger,
	}
}

// Classify scans the message for sensitive content, selects a processor,
// and returns the classified result. It never fails: any degradation
// happens inside the processors.
func (e *Engine) Classify(
	ctx context.Context, email model.IncomingEmail,
) model.ClassifiedEmail {
	scan := privacy.Scan(email.Subject, email.TextBody)

	if scan.Level != model.PrivacyNormal {
		e.logger.Info("sensitive content detected",
			"email_id", email.ID,
			"level", scan.Level,
			"labels", scan.MatchedLabels)
	}

	proc := e.selectProcessor(scan)
	result := proc.Process(ctx, email, scan.Level)

	if privacy.DisablesAI(scan) {
		result.Summary = model.AIDisabledSummary
	}
	return result
}

// selectProcessor applies the privacy-over-mode decision table.
func (e *Engine) selectProcessor(scan privacy.ScanResult) Processor {
	if privacy.DisablesAI(scan) {
		return e.rule
	}
	if privacy.RequiresLocal(scan) {
		return e.orRule(e.local)
	}

	switch e.mode {
	case model.AIModeLocal:
		return e.orRule(e.local)
	case model.AIModeAPI:
		if !e.hasAPIKey {
			e.logger.Warn("api mode configured without credential, using local model")
			return e.orRule(e.local)
		}
		return e.orRule(e.api)
	case model.AIModeHybrid:
		return e.orRule(e.hybrid)
	default:
		return e.rule
	}
}

// orRule guards against an unconfigured processor for the chosen path.
func (e *Engine) orRule(p Processor) Processor {
	if p == nil {
		return e.rule
	}
	return p
}
