package classify

import (
	"context"
	"strings"
	"time"

	"github.com/nhle/mail-manager/internal/dates"
	"github.com/nhle/mail-manager/internal/model"
)

// urgentKeywords and importantKeywords drive rule-based priority.
// Urgent is checked first; the first match in either list wins.
var urgentKeywords = []string{
	"urgent", "紧急", "deadline", "截止", "due", "考试", "exam",
	"immediately", "立即", "asap", "重要通知",
}

var importantKeywords = []string{
	"assignment", "作业", "quiz", "测验", "grade", "成绩",
	"submission", "提交", "注册", "register",
}

// tagKeywords maps a tag name to the keywords that trigger it.
var tagKeywords = []struct {
	tag      string
	keywords []string
}{
	{"assignment", []string{"assignment", "作业", "homework"}},
	{"deadline", []string{"deadline", "截止", "due"}},
	{"exam", []string{"exam", "考试", "quiz", "测验"}},
	{"lecture", []string{"lecture", "课程", "class"}},
	{"career", []string{"career", "招聘", "job", "实习"}},
	{"newsletter", []string{"newsletter", "通讯", "news"}},
	{"grade", []string{"grade", "成绩", "score"}},
	{"project", []string{"project", "项目"}},
}

// RulePriority classifies a message by keyword table alone.
func RulePriority(subject, body string) model.Priority {
	content := strings.ToLower(subject + " " + body)

	for _, kw := range urgentKeywords {
		if strings.Contains(content, kw) {
			return model.PriorityUrgent
		}
	}
	for _, kw := range importantKeywords {
		if strings.Contains(content, kw) {
			return model.PriorityImportant
		}
	}
	return model.PriorityNormal
}

// RuleTags extracts tags by dictionary lookup, bounded to model.MaxTags
// and deduplicated by tag name.
func RuleTags(subject, body string) []string {
	content := strings.ToLower(subject + " " + body)

	var tags []string
	for _, entry := range tagKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(content, kw) {
				tags = append(tags, entry.tag)
				break
			}
		}
		if len(tags) >= model.MaxTags {
			break
		}
	}
	return tags
}

// RuleDeadline extracts a deadline by deterministic pattern matching,
// returning the YYYY-MM-DD string or empty.
func RuleDeadline(subject, body string, now time.Time) string {
	d, ok := dates.ExtractDeadline(subject+" "+body, now)
	if !ok {
		return ""
	}
	return d.Format("2006-01-02")
}

// RuleProcessor classifies without any model call. It is the fallback
// floor for every other processor and the only processor permitted for
// extreme-sensitivity messages.
type RuleProcessor struct {
	// Now supplies the clock for same-year deadline assumptions;
	// tests pin it. Nil means time.Now.
	Now func() time.Time
}

// Name returns the provenance tag for rule-based results.
func (p *RuleProcessor) Name() string {
	return model.ProcessorRuleBased
}

func (p *RuleProcessor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Process produces a ClassifiedEmail using keyword tables only. The
// summary is left for the policy engine: extreme-sensitivity messages
// carry the fixed AI-disabled marker, plain rule fallbacks stay empty.
func (p *RuleProcessor) Process(
	_ context.Context, email model.IncomingEmail, level model.PrivacyLevel,
) model.ClassifiedEmail {
	return model.ClassifiedEmail{
		IncomingEmail: email,
		Priority:      RulePriority(email.Subject, email.TextBody),
		Tags:          RuleTags(email.Subject, email.TextBody),
		Deadline:      RuleDeadline(email.Subject, email.TextBody, p.now()),
		Summary:       "",
		ProcessedBy:   model.ProcessorRuleBased,
		PrivacyLevel:  level,
		Processed:     true,
	}
}
