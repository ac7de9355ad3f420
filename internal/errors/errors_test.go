package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "config error",
			code:    "E100",
			wantMsg: "Invalid configuration file",
			wantCat: CategoryConfig,
		},
		{
			name:    "collaborator error",
			code:    "E200",
			wantMsg: "Upload failed",
			wantCat: CategoryCollaborator,
		},
		{
			name:    "validation error",
			code:    "E301",
			wantMsg: "Demo imports the component it demonstrates",
			wantCat: CategoryValidation,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "file %q not found", "button.tsx")
	if err.Message != `file "button.tsx" not found` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want %q", err.Category, CategoryCLI)
	}
}

func TestRegistryError_Error(t *testing.T) {
	err := New("E303")
	if got, want := err.Error(), "E303: Slug not available"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := New("E200").Wrap(fmt.Errorf("connection reset"))
	if got, want := wrapped.Error(), "E200: Upload failed: connection reset"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &RegistryError{Message: "test error"}
	if bare.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", bare.Error(), "test error")
	}
}

func TestRegistryError_Builders(t *testing.T) {
	err := New("E303").
		WithField("component_slug").
		WithDetailf("%s is taken", "button").
		WithSuggestion("Try button-1")

	if err.Field != "component_slug" {
		t.Errorf("Field = %q", err.Field)
	}
	if err.Detail != "button is taken" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Suggestion != "Try button-1" {
		t.Errorf("Suggestion = %q", err.Suggestion)
	}
}

func TestRegistryError_IsAndAs(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := fmt.Errorf("submit: %w", New("E200").Wrap(cause))

	if !stderrors.Is(err, New("E200")) {
		t.Error("errors.Is should match by code")
	}
	if stderrors.Is(err, New("E201")) {
		t.Error("errors.Is should not match a different code")
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
	re, ok := As(err)
	if !ok || re.Code != "E200" {
		t.Fatalf("As() = %v, %v", re, ok)
	}
	if !re.Retryable {
		t.Error("E200 should be retryable")
	}
	if !HasCode(err, "E200") {
		t.Error("HasCode should find E200")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E200") != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	re := New("E201")
	if FromError(fmt.Errorf("wrap: %w", re), "E200") != re {
		t.Error("FromError should return the wrapped RegistryError as-is")
	}

	std := stderrors.New("boom")
	result := FromError(std, "E205")
	if result.Wrapped != std || result.Code != "E205" {
		t.Errorf("FromError = %+v", result)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New("E300"), http.StatusUnprocessableEntity},
		{New("E303"), http.StatusConflict},
		{New("E309"), http.StatusBadRequest},
		{New("E340"), http.StatusNotFound},
		{New("E345"), http.StatusUnauthorized},
		{New("E342"), http.StatusConflict},
		{New("E200"), http.StatusBadGateway},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E302").WithField("internal_dependencies").WithSuggestion("Enter username/slug")
	out := err.Format()
	for _, want := range []string{"ERROR E302: Internal dependency slug missing", "field: internal_dependencies", "Hint: Enter username/slug"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}

	if got := err.FormatCompact(); got != "E302: Internal dependency slug missing [internal_dependencies]" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("E303").WithField("component_slug")
	var p Payload
	if e := json.Unmarshal([]byte(err.FormatJSON()), &p); e != nil {
		t.Fatalf("invalid JSON: %v", e)
	}
	if p.Code != "E303" || p.Field != "component_slug" || p.Category != CategoryValidation {
		t.Errorf("payload = %+v", p)
	}
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, stderrors.New("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("PrintError() = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six seven", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if strings.Join(lines, " ") != "one two three four five six seven" {
		t.Errorf("wrapText lost words: %v", lines)
	}
}

func TestGetAllCodesSorted(t *testing.T) {
	codes := GetAllCodes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] > codes[i] {
			t.Fatalf("codes not sorted at %d: %s > %s", i, codes[i-1], codes[i])
		}
	}
	if _, ok := GetTemplate("E210"); !ok {
		t.Error("E210 should be registered")
	}
}
