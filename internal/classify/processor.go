// Package classify turns raw messages into classified results. A policy
// engine picks one of four processors per message based on the detected
// sensitivity tier and the configured AI mode; every model-backed
// sub-task degrades independently to the rule-based floor on failure.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nhle/mail-manager/internal/model"
)

// Processor is the shared contract of the four classification variants.
// Process never fails: internal errors degrade the affected sub-task to
// its rule-based equivalent and the result is still produced.
type Processor interface {
	// Name returns the provenance tag recorded on results.
	Name() string

	// Process classifies one message given its detected sensitivity tier.
	Process(
		ctx context.Context,
		email model.IncomingEmail,
		level model.PrivacyLevel,
	) model.ClassifiedEmail
}

// Prompt input limits, mirroring what the model endpoints can usefully
// consume per sub-task.
const (
	classifyBodyLimit = 500
	tagBodyLimit      = 300
	summaryBodyLimit  = 1500
	classifyMaxTokens = 10
	tagMaxTokens      = 50
	summaryMaxTokens  = 150
	maxTagLength      = 20
)

// LLMProcessor runs all four sub-tasks through a chat model. It backs
// both the local-model and cloud-API variants; only the client and the
// provenance tag differ.
type LLMProcessor struct {
	client ChatClient
	name   string
	logger *slog.Logger

	// summaryMinChars is the minimum body length before a summary is
	// generated; shorter bodies skip the model call entirely.
	summaryMinChars int

	now func() time.Time
}

// NewLocalProcessor creates the processor backed by the local model
// endpoint.
func NewLocalProcessor(
	client ChatClient, summaryMinChars int, logger *slog.Logger,
) *LLMProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMProcessor{
		client:          client,
		name:            fmt.Sprintf("local (%s)", client.ModelName()),
		logger:          logger,
		summaryMinChars: summaryMinChars,
		now:             time.Now,
	}
}

// NewAPIProcessor creates the processor backed by a cloud provider.
func NewAPIProcessor(
	client ChatClient, summaryMinChars int, logger *slog.Logger,
) *LLMProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMProcessor{
		client:          client,
		name:            fmt.Sprintf("api (%s)", client.ModelName()),
		logger:          logger,
		summaryMinChars: summaryMinChars,
		now:             time.Now,
	}
}

// Name returns the provenance tag for this processor's results.
func (p *LLMProcessor) Name() string {
	return p.name
}

// Process runs priority, tags, deadline, and summary sub-tasks. Each is
// wrapped so that a failure degrades only that sub-task.
func (p *LLMProcessor) Process(
	ctx context.Context,
	email model.IncomingEmail,
	level model.PrivacyLevel,
) model.ClassifiedEmail {
	priority, _ := p.classify(ctx, email.Subject, email.TextBody)
	tags, _ := p.extractTags(ctx, email.Subject, email.TextBody)
	deadline := RuleDeadline(email.Subject, email.TextBody, p.now())

	summary := ""
	if len(email.TextBody) > p.summaryMinChars {
		summary, _ = p.summarize(ctx, email.TextBody)
	}

	return model.ClassifiedEmail{
		IncomingEmail: email,
		Priority:      priority,
		Tags:          tags,
		Deadline:      deadline,
		Summary:       summary,
		ProcessedBy:   p.name,
		PrivacyLevel:  level,
		Processed:     true,
	}
}

// classify asks the model for a priority tier, degrading to the keyword
// table on failure. The second return reports degradation.
func (p *LLMProcessor) classify(
	ctx context.Context, subject, body string,
) (model.Priority, bool) {
	prompt := fmt.Sprintf(`Classify the priority of this email.
Choices: urgent, important, normal, archive

Criteria:
- urgent: deadline < 3 days, exam notices, urgent administrative notices
- important: assignments, quizzes, grades, registration notices
- normal: general notices, event invitations, news
- archive: confirmations, advertising, expired content

Subject: %s
Body: %s

Reply with exactly one word: urgent/important/normal/archive`,
		subject, truncate(body, classifyBodyLimit))

	reply, err := p.client.Chat(ctx, prompt, classifyMaxTokens)
	if err != nil {
		p.logger.Warn("priority classification degraded to rules",
			"processor", p.name, "err", err)
		return RulePriority(subject, body), true
	}

	return parsePriorityReply(reply), false
}

// extractTags asks the model for tags, degrading to the dictionary
// lookup on failure.
func (p *LLMProcessor) extractTags(
	ctx context.Context, subject, body string,
) ([]string, bool) {
	prompt := fmt.Sprintf(`Extract 2-4 short keyword tags from this email.
Reply format: tag1, tag2, tag3

Subject: %s
Body: %s

Tags:`, subject, truncate(body, tagBodyLimit))

	reply, err := p.client.Chat(ctx, prompt, tagMaxTokens)
	if err != nil {
		p.logger.Warn("tag extraction degraded to rules",
			"processor", p.name, "err", err)
		return RuleTags(subject, body), true
	}

	return parseTagReply(reply), false
}

// summarize asks the model for a short summary; a failed call degrades
// to an empty summary rather than aborting the message.
func (p *LLMProcessor) summarize(
	ctx context.Context, body string,
) (string, bool) {
	prompt := fmt.Sprintf(
		"Summarize the key points of this email in 2-3 sentences:\n\n%s\n\nSummary:",
		truncate(body, summaryBodyLimit),
	)

	reply, err := p.client.Chat(ctx, prompt, summaryMaxTokens)
	if err != nil {
		p.logger.Warn("summarization degraded",
			"processor", p.name, "err", err)
		return "", true
	}
	return reply, false
}

// HybridProcessor computes priority, tags, and deadline locally and
// escalates summarization to the cloud only for long bodies when a
// credential is configured. The thresholds are configuration, not
// correctness requirements.
type HybridProcessor struct {
	local *LLMProcessor
	api   *LLMProcessor

	// apiMinChars is the body length above which summarization uses
	// the cloud processor. Zero or a nil api disables escalation.
	apiMinChars int

	hasAPIKey bool
}

// NewHybridProcessor composes the local and API processors.
func NewHybridProcessor(
	local, api *LLMProcessor, apiMinChars int, hasAPIKey bool,
) *HybridProcessor {
	return &HybridProcessor{
		local:       local,
		api:         api,
		apiMinChars: apiMinChars,
		hasAPIKey:   hasAPIKey,
	}
}

// Name returns the provenance tag of the local half; Process overrides
// it when the cloud summarizer ran.
func (p *HybridProcessor) Name() string {
	return fmt.Sprintf("hybrid (%s)", p.local.client.ModelName())
}

// Process classifies locally and picks the summarizer by body length.
func (p *HybridProcessor) Process(
	ctx context.Context,
	email model.IncomingEmail,
	level model.PrivacyLevel,
) model.ClassifiedEmail {
	priority, _ := p.local.classify(ctx, email.Subject, email.TextBody)
	tags, _ := p.local.extractTags(ctx, email.Subject, email.TextBody)
	deadline := RuleDeadline(email.Subject, email.TextBody, p.local.now())

	summary := ""
	processedBy := p.Name()

	if len(email.TextBody) > p.apiMinChars && p.hasAPIKey && p.api != nil {
		summary, _ = p.api.summarize(ctx, email.TextBody)
		processedBy = fmt.Sprintf("hybrid (%s)", p.api.client.ModelName())
	} else if len(email.TextBody) > p.local.summaryMinChars {
		summary, _ = p.local.summarize(ctx, email.TextBody)
	}

	return model.ClassifiedEmail{
		IncomingEmail: email,
		Priority:      priority,
		Tags:          tags,
		Deadline:      deadline,
		Summary:       summary,
		ProcessedBy:   processedBy,
		PrivacyLevel:  level,
		Processed:     true,
	}
}

// parsePriorityReply maps a free-text model reply onto a priority tier.
func parsePriorityReply(reply string) model.Priority {
	lower := strings.ToLower(reply)
	switch {
	case strings.Contains(lower, "urgent"):
		return model.PriorityUrgent
	case strings.Contains(lower, "important"):
		return model.PriorityImportant
	case strings.Contains(lower, "archive"):
		return model.PriorityArchive
	default:
		return model.PriorityNormal
	}
}

// parseTagReply splits a comma-separated model reply into clean tags,
// bounded to model.MaxTags.
func parseTagReply(reply string) []string {
	parts := strings.Split(reply, ",")

	var tags []string
	for _, part := range parts {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag == "" || len(tag) >= maxTagLength {
			continue
		}
		tags = append(tags, tag)
		if len(tags) >= model.MaxTags {
			break
		}
	}
	return tags
}

// truncate limits prompt input length without splitting away the head.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
