package slug

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Button", "button"},
		{"My Button", "my-button"},
		{"  Fancy   Card!! ", "fancy-card"},
		{"Crème brûlée", "creme-brulee"},
		{"data-table_v2", "data-table-v2"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Make(tt.in); got != tt.want {
			t.Errorf("Make(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := Make(strings.Repeat("ab ", 40))
	if len(long) > MaxLength || strings.HasSuffix(long, "-") {
		t.Errorf("Make(long) = %q", long)
	}
}

func TestValid(t *testing.T) {
	for _, s := range []string{"button", "my-button", "a1-b2"} {
		if !Valid(s) {
			t.Errorf("Valid(%q) = false", s)
		}
	}
	for _, s := range []string{"", "Button", "my--button", "-a", "a-", "a b", strings.Repeat("a", MaxLength+1)} {
		if Valid(s) {
			t.Errorf("Valid(%q) = true", s)
		}
	}
}

func TestUnique(t *testing.T) {
	taken := map[string]bool{"button": true, "button-1": true}
	free := func(_ context.Context, s string) (bool, error) { return !taken[s], nil }

	got, err := Unique(context.Background(), "button", free)
	if err != nil || got != "button-2" {
		t.Errorf("Unique() = %q, %v, want button-2", got, err)
	}

	got, err = Unique(context.Background(), "card", free)
	if err != nil || got != "card" {
		t.Errorf("Unique() = %q, %v, want card", got, err)
	}
}

func TestUniqueErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Unique(context.Background(), "x", func(context.Context, string) (bool, error) { return false, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}

	_, err = Unique(context.Background(), "x", func(context.Context, string) (bool, error) { return false, nil })
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, want ErrExhausted", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Unique(ctx, "x", func(context.Context, string) (bool, error) { return true, nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
