// Package privacy classifies message content into a sensitivity tier.
// The tier is the sole input to processor selection: extreme content is
// handled by rules only, high content is pinned to the local model.
package privacy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nhle/mail-manager/internal/model"
)

// ScanResult is the outcome of scanning one message.
type ScanResult struct {
	// Level is the most restrictive sensitivity tier matched.
	Level model.PrivacyLevel

	// MatchedLabels holds the labels of keywords or patterns that
	// triggered the result. For medium-sensitivity matches all labels
	// are collected; for higher tiers the first match wins.
	MatchedLabels []string

	// Reason is a human-readable explanation of the result.
	Reason string
}

// keywordLabel pairs a search keyword with the label reported on match.
type keywordLabel struct {
	keyword string
	label   string
}

// extremeKeywords disable AI processing entirely: credentials, secrets,
// financial and identity numbers, tokens. Order matters; the first match
// wins and no further categories are checked.
var extremeKeywords = []keywordLabel{
	{"password", "password"},
	{"密码", "password"},
	{"验证码", "verification code"},
	{"verification code", "verification code"},
	{"pin", "PIN"},
	{"pin码", "PIN"},
	{"credit card", "credit card"},
	{"信用卡", "credit card"},
	{"银行账号", "bank account"},
	{"account number", "account number"},
	{"身份证号", "national ID"},
	{"id number", "national ID"},
	{"passport", "passport"},
	{"护照", "passport"},
	{"hkid", "HKID"},
	{"香港身份证", "HKID"},
	{"api key", "API key"},
	{"api_key", "API key"},
	{"token", "token"},
	{"secret", "secret"},
	{"private key", "private key"},
}

// highKeywords force local processing: academic records, disciplinary,
// medical and counseling terms.
var highKeywords = []keywordLabel{
	{"transcript", "transcript"},
	{"成绩单", "transcript"},
	{"gpa", "GPA"},
	{"成绩", "grades"},
	{"grade", "grades"},
	{"排名", "ranking"},
	{"ranking", "ranking"},
	{"disciplinary", "disciplinary"},
	{"处分", "disciplinary"},
	{"medical", "medical"},
	{"健康", "health"},
	{"health", "health"},
	{"counseling", "counseling"},
	{"心理咨询", "counseling"},
	{"therapy", "therapy"},
	{"diagnosis", "diagnosis"},
}

// mediumKeywords are advisory only; the tier stays normal but all
// matches are collected and reported.
var mediumKeywords = []keywordLabel{
	{"phone", "phone number"},
	{"电话", "phone number"},
	{"手机", "mobile number"},
	{"mobile", "mobile number"},
	{"address", "address"},
	{"地址", "address"},
	{"住址", "address"},
}

// patternLabel pairs a structural pattern with its reported label.
type patternLabel struct {
	re    *regexp.Regexp
	label string
}

// sensitivePatterns detect structured identifiers: credit-card-like digit
// groups, national-ID-like sequences, and phone-number-like patterns.
// All patterns match case-insensitively.
var sensitivePatterns = []patternLabel{
	{regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`), "credit card number"},
	{regexp.MustCompile(`(?i)\b\d{17}[\dX]\b`), "national ID number"},
	{regexp.MustCompile(`(?i)\b[A-Z]{1,2}\d{6,7}[A-Z0-9]?\b`), "HKID number"},
	{regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), "phone number"},
}

// Scan inspects the subject and body and returns the detected sensitivity
// tier. Matching is case-insensitive, ordered, and short-circuiting:
// extreme keywords, then structural patterns, then high keywords, then
// medium keywords (collected, advisory). The result is deterministic and
// Scan has no side effects.
func Scan(subject, body string) ScanResult {
	content := strings.ToLower(subject + " " + body)

	for _, kw := range extremeKeywords {
		if strings.Contains(content, kw.keyword) {
			return ScanResult{
				Level:         model.PrivacyExtreme,
				MatchedLabels: []string{kw.label},
				Reason:        fmt.Sprintf("detected %q", kw.label),
			}
		}
	}

	for _, p := range sensitivePatterns {
		if p.re.MatchString(content) {
			return ScanResult{
				Level:         model.PrivacyExtreme,
				MatchedLabels: []string{p.label},
				Reason:        fmt.Sprintf("detected %q formatted data", p.label),
			}
		}
	}

	for _, kw := range highKeywords {
		if strings.Contains(content, kw.keyword) {
			return ScanResult{
				Level:         model.PrivacyHigh,
				MatchedLabels: []string{kw.label},
				Reason:        fmt.Sprintf("detected %q", kw.label),
			}
		}
	}

	var matched []string
	for _, kw := range mediumKeywords {
		if strings.Contains(content, kw.keyword) && !contains(matched, kw.label) {
			matched = append(matched, kw.label)
		}
	}
	if len(matched) > 0 {
		return ScanResult{
			Level:         model.PrivacyNormal,
			MatchedLabels: matched,
			Reason:        "detected " + strings.Join(matched, ", "),
		}
	}

	return ScanResult{
		Level:  model.PrivacyNormal,
		Reason: "no sensitive content",
	}
}

// RequiresLocal reports whether the scan result forbids cloud processing.
func RequiresLocal(r ScanResult) bool {
	return r.Level == model.PrivacyExtreme || r.Level == model.PrivacyHigh
}

// DisablesAI reports whether the scan result forbids any model processing.
func DisablesAI(r ScanResult) bool {
	return r.Level == model.PrivacyExtreme
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
