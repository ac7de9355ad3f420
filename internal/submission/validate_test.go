package submission_test

import (
	"strings"
	"testing"

	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/submission"
)

func TestFormatComponentName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Button", "Button"},
		{"MyButton", "My Button"},
		{"HTMLInput", "HTML Input"},
		{"Card3D", "Card3 D"},
		{"card_list", "Card List"},
		{"data-table", "Data Table"},
		{"  AlertDialog ", "Alert Dialog"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := submission.FormatComponentName(tt.in); got != tt.want {
			t.Errorf("FormatComponentName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name  string
		v     submission.Validator
		value string
		code  string
	}{
		{"required blank", submission.Required(""), "  ", "E300"},
		{"required ok", submission.Required(""), "x", ""},
		{"max length over", submission.MaxLength(3, ""), "abcd", "E306"},
		{"max length runes", submission.MaxLength(3, ""), "äöü", ""},
		{"slug bad", submission.Slug(), "Bad Slug", "E304"},
		{"slug empty skipped", submission.Slug(), "", ""},
		{"slug ok", submission.Slug(), "fancy-button-2", ""},
		{"url bad scheme", submission.HTTPURL(""), "javascript:alert(1)", "E306"},
		{"url no host", submission.HTTPURL(""), "https://", "E306"},
		{"url ok", submission.HTTPURL(""), "https://example.com/x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate(tt.value)
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.HasCode(err, tt.code) {
				t.Fatalf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestValidateTags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		ok   bool
	}{
		{"none", nil, true},
		{"fine", []string{"buttons", "Forms & Inputs"}, true},
		{"blank", []string{"ok", " "}, false},
		{"too long", []string{strings.Repeat("x", submission.MaxTagLength+1)}, false},
		{"no letters", []string{"!!!"}, false},
		{"too many", make([]string, submission.MaxTags+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := submission.ValidateTags(tt.tags)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected an error")
				}
				if err.Code != "E307" || err.Field != "tags" {
					t.Errorf("got %s on %q, want E307 on tags", err.Code, err.Field)
				}
			}
		})
	}
}

func TestStateText(t *testing.T) {
	for s := submission.EnteringCode; s <= submission.Failed; s++ {
		text, _ := s.MarshalText()
		var back submission.State
		if err := back.UnmarshalText(text); err != nil || back != s {
			t.Errorf("round trip of %s gave %s, %v", s, back, err)
		}
	}
	var s submission.State
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown state")
	}
}
