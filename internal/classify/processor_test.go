package classify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/nhle/mail-manager/internal/model"
)

// fakeChat scripts replies per sub-task, recognized by prompt shape.
type fakeChat struct {
	model string

	priorityReply string
	tagReply      string
	summaryReply  string

	failPriority bool
	failTags     bool
	failSummary  bool

	summaryCalls int
}

func (f *fakeChat) ModelName() string { return f.model }

func (f *fakeChat) Chat(_ context.Context, prompt string, _ int) (string, error) {
	switch {
	case strings.Contains(prompt, "Classify the priority"):
		if f.failPriority {
			return "", errors.New("model unavailable")
		}
		return f.priorityReply, nil
	case strings.Contains(prompt, "keyword tags"):
		if f.failTags {
			return "", errors.New("model unavailable")
		}
		return f.tagReply, nil
	case strings.Contains(prompt, "Summarize"):
		f.summaryCalls++
		if f.failSummary {
			return "", errors.New("model unavailable")
		}
		return f.summaryReply, nil
	}
	return "", errors.New("unrecognized prompt")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func longBody(n int) string {
	return strings.Repeat("x", n)
}

func TestLLMProcessorProcess(t *testing.T) {
	chat := &fakeChat{
		model:         "qwen2.5:3b",
		priorityReply: "urgent",
		tagReply:      "exam, logistics",
		summaryReply:  "Midterm moved to Friday.",
	}
	p := NewLocalProcessor(chat, 100, discardLogger())
	p.now = ruleNow

	email := model.IncomingEmail{
		ID:       "m1",
		Subject:  "Midterm update",
		TextBody: longBody(150),
	}
	got := p.Process(context.Background(), email, model.PrivacyNormal)

	if got.Priority != model.PriorityUrgent {
		t.Errorf("Priority = %q, want urgent", got.Priority)
	}
	if want := []string{"exam", "logistics"}; !reflect.DeepEqual(got.Tags, want) {
		t.Errorf("Tags = %v, want %v", got.Tags, want)
	}
	if got.Summary != "Midterm moved to Friday." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if got.ProcessedBy != "local (qwen2.5:3b)" {
		t.Errorf("ProcessedBy = %q", got.ProcessedBy)
	}
	if !got.Processed {
		t.Error("Processed = false, want true")
	}
}

func TestLLMProcessorSkipsShortSummaries(t *testing.T) {
	chat := &fakeChat{model: "m", priorityReply: "normal", tagReply: ""}
	p := NewLocalProcessor(chat, 100, discardLogger())
	p.now = ruleNow

	email := model.IncomingEmail{ID: "m2", Subject: "hi", TextBody: "short body"}
	got := p.Process(context.Background(), email, model.PrivacyNormal)

	if chat.summaryCalls != 0 {
		t.Errorf("summary called %d times for a short body", chat.summaryCalls)
	}
	if got.Summary != "" {
		t.Errorf("Summary = %q, want empty", got.Summary)
	}
}

func TestLLMProcessorDegradesPerSubTask(t *testing.T) {
	tests := []struct {
		name         string
		chat         *fakeChat
		wantPriority model.Priority
		wantTags     []string
		wantSummary  string
	}{
		{
			name: "priority fails, rest survive",
			chat: &fakeChat{
				model:        "m",
				failPriority: true,
				tagReply:     "assignment",
				summaryReply: "ok",
			},
			// keyword table sees "assignment" in the subject
			wantPriority: model.PriorityImportant,
			wantTags:     []string{"assignment"},
			wantSummary:  "ok",
		},
		{
			name: "tags fail, rest survive",
			chat: &fakeChat{
				model:         "m",
				priorityReply: "normal",
				failTags:      true,
				summaryReply:  "ok",
			},
			wantPriority: model.PriorityNormal,
			wantTags:     []string{"assignment"},
			wantSummary:  "ok",
		},
		{
			name: "summary fails, rest survive",
			chat: &fakeChat{
				model:         "m",
				priorityReply: "archive",
				tagReply:      "assignment, lecture",
				failSummary:   true,
			},
			wantPriority: model.PriorityArchive,
			wantTags:     []string{"assignment", "lecture"},
			wantSummary:  "",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			p := NewLocalProcessor(tc.chat, 100, discardLogger())
			p.now = ruleNow

			email := model.IncomingEmail{
				ID:       "m3",
				Subject:  "Assignment 1 posted",
				TextBody: longBody(150),
			}
			got := p.Process(context.Background(), email, model.PrivacyNormal)

			if got.Priority != tc.wantPriority {
				t.Errorf("Priority = %q, want %q", got.Priority, tc.wantPriority)
			}
			if !reflect.DeepEqual(got.Tags, tc.wantTags) {
				t.Errorf("Tags = %v, want %v", got.Tags, tc.wantTags)
			}
			if got.Summary != tc.wantSummary {
				t.Errorf("Summary = %q, want %q", got.Summary, tc.wantSummary)
			}
			if !got.Processed {
				t.Error("Processed = false, want true")
			}
		})
	}
}

func TestParsePriorityReply(t *testing.T) {
	tests := []struct {
		reply string
		want  model.Priority
	}{
		{"urgent", model.PriorityUrgent},
		{"Priority: IMPORTANT", model.PriorityImportant},
		{"archive this", model.PriorityArchive},
		{"normal", model.PriorityNormal},
		{"I cannot classify this", model.PriorityNormal},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.reply, func(t *testing.T) {
			if got := parsePriorityReply(tc.reply); got != tc.want {
				t.Errorf("parsePriorityReply(%q) = %q, want %q", tc.reply, got, tc.want)
			}
		})
	}
}

func TestParseTagReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{"clean list", "exam, Deadline, Lab", []string{"exam", "deadline", "lab"}},
		{"bounded at four", "a, b, c, d, e, f", []string{"a", "b", "c", "d"}},
		{"skips empty and oversized", "ok, , averylongtagthatkeepsgoing, fine", []string{"ok", "fine"}},
		{"empty reply", "", nil},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			if got := parseTagReply(tc.reply); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("parseTagReply(%q) = %v, want %v", tc.reply, got, tc.want)
			}
		})
	}
}

func TestHybridProcessorSummaryRouting(t *testing.T) {
	tests := []struct {
		name           string
		bodyLen        int
		hasKey         bool
		wantLocalCalls int
		wantAPICalls   int
		wantBy         string
	}{
		{
			name:           "long body with key goes to cloud",
			bodyLen:        600,
			hasKey:         true,
			wantLocalCalls: 0,
			wantAPICalls:   1,
			wantBy:         "hybrid (gpt-4o-mini)",
		},
		{
			name:           "long body without key stays local",
			bodyLen:        600,
			hasKey:         false,
			wantLocalCalls: 1,
			wantAPICalls:   0,
			wantBy:         "hybrid (qwen2.5:3b)",
		},
		{
			name:           "medium body stays local",
			bodyLen:        200,
			hasKey:         true,
			wantLocalCalls: 1,
			wantAPICalls:   0,
			wantBy:         "hybrid (qwen2.5:3b)",
		},
		{
			name:           "short body gets no summary",
			bodyLen:        50,
			hasKey:         true,
			wantLocalCalls: 0,
			wantAPICalls:   0,
			wantBy:         "hybrid (qwen2.5:3b)",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			localChat := &fakeChat{
				model: "qwen2.5:3b", priorityReply: "normal",
				tagReply: "", summaryReply: "local summary",
			}
			apiChat := &fakeChat{
				model: "gpt-4o-mini", summaryReply: "cloud summary",
			}
			local := NewLocalProcessor(localChat, 100, discardLogger())
			local.now = ruleNow
			api := NewAPIProcessor(apiChat, 100, discardLogger())

			p := NewHybridProcessor(local, api, 500, tc.hasKey)

			email := model.IncomingEmail{
				ID: "m4", Subject: "hello", TextBody: longBody(tc.bodyLen),
			}
			got := p.Process(context.Background(), email, model.PrivacyNormal)

			if localChat.summaryCalls != tc.wantLocalCalls {
				t.Errorf("local summary calls = %d, want %d",
					localChat.summaryCalls, tc.wantLocalCalls)
			}
			if apiChat.summaryCalls != tc.wantAPICalls {
				t.Errorf("cloud summary calls = %d, want %d",
					apiChat.summaryCalls, tc.wantAPICalls)
			}
			if got.ProcessedBy != tc.wantBy {
				t.Errorf("ProcessedBy = %q, want %q", got.ProcessedBy, tc.wantBy)
			}
		})
	}
}
