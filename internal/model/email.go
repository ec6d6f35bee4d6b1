package model

import "time"

// Priority is the classification tier assigned to an email.
// Tiers are ordered: urgent > important > normal > archive.
type Priority string

const (
	PriorityUrgent    Priority = "urgent"
	PriorityImportant Priority = "important"
	PriorityNormal    Priority = "normal"
	PriorityArchive   Priority = "archive"
)

// ParsePriority converts a stored string into a Priority,
// defaulting to normal for unknown values.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityUrgent, PriorityImportant, PriorityNormal, PriorityArchive:
		return Priority(s)
	default:
		return PriorityNormal
	}
}

// PrivacyLevel is the sensitivity tier detected by the privacy scanner.
// It governs which processor may handle a message.
type PrivacyLevel string

const (
	// PrivacyExtreme disables AI processing entirely; only the
	// rule-based processor may run.
	PrivacyExtreme PrivacyLevel = "extreme"

	// PrivacyHigh forces the local-model processor regardless of the
	// configured AI mode.
	PrivacyHigh PrivacyLevel = "high"

	// PrivacyNormal allows the configured AI mode to apply.
	PrivacyNormal PrivacyLevel = "normal"
)

// AIMode selects which processor handles messages of normal sensitivity.
type AIMode string

const (
	AIModeLocal  AIMode = "local"
	AIModeAPI    AIMode = "api"
	AIModeHybrid AIMode = "hybrid"
)

// ProcessorRuleBased is the provenance tag recorded when the rule-based
// processor produced the result. The AI processors record their model name.
const ProcessorRuleBased = "rule_based"

// AIDisabledSummary is the fixed summary marker stored when AI processing
// is disabled for a message due to extreme sensitivity.
const AIDisabledSummary = "(AI summary disabled: privacy protection)"

// MaxTags bounds the number of free-text tags on a classified email.
const MaxTags = 4

// EmailHeader holds the header-only view of a mailbox message,
// used for previews without fetching body content.
type EmailHeader struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	SenderEmail string    `json:"sender_email"`
	SenderName  string    `json:"sender_name"`
	Date        time.Time `json:"date"`
}

// IncomingEmail is a raw message as delivered by the mailbox gateway.
// The gateway hands over already-decoded subject/body/attachment fields.
type IncomingEmail struct {
	// ID is the server-assigned unique identifier, stable across fetches.
	// When the gateway cannot supply one a random fallback is generated;
	// such messages can never be deduplicated.
	ID string `json:"id"`

	Subject     string `json:"subject"`
	SenderEmail string `json:"sender_email"`
	SenderName  string `json:"sender_name"`

	// Date is the received timestamp from the envelope.
	Date time.Time `json:"date"`

	TextBody string `json:"text_body"`
	HTMLBody string `json:"html_body,omitempty"`

	HasAttachments  bool `json:"has_attachments"`
	AttachmentCount int  `json:"attachment_count"`
}

// ClassifiedEmail is an IncomingEmail enriched with the classification
// result. Once created it is immutable; re-processing a message produces
// a new ClassifiedEmail that replaces the persisted record by ID.
type ClassifiedEmail struct {
	IncomingEmail

	// Priority is the classification tier.
	Priority Priority `json:"priority"`

	// Tags holds up to MaxTags free-text labels.
	Tags []string `json:"tags"`

	// Deadline is an extracted calendar date in YYYY-MM-DD form,
	// empty when none was found.
	Deadline string `json:"deadline,omitempty"`

	// Summary is the generated summary, possibly empty.
	Summary string `json:"summary"`

	// ProcessedBy identifies the processor or model that produced
	// this result (e.g. "rule_based", "local (llama3.1:8b)").
	ProcessedBy string `json:"processed_by"`

	// PrivacyLevel is the sensitivity tier detected before processing.
	PrivacyLevel PrivacyLevel `json:"privacy_level"`

	// Processed reports whether classification ran to completion.
	Processed bool `json:"processed"`

	IsRead     bool `json:"is_read"`
	IsArchived bool `json:"is_archived"`
}
