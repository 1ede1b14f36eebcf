package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
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
			name:    "ordering violation",
			code:    "H001",
			wantMsg: "Hook order changed between renders",
			wantCat: CategoryOrdering,
		},
		{
			name:    "stale write",
			code:    "H003",
			wantMsg: "Write to torn-down instance",
			wantCat: CategoryLifecycle,
		},
		{
			name:    "effect failure",
			code:    "H004",
			wantMsg: "Effect body failed",
			wantCat: CategoryEffect,
		},
		{
			name:    "unknown error code",
			code:    "H999",
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
	err := Newf(CategoryScenario, "step %q not found", "boom")
	if err.Message != `step "boom" not found` {
		t.Errorf("Message = %q, want %q", err.Message, `step "boom" not found`)
	}
	if err.Category != CategoryScenario {
		t.Errorf("Category = %q, want %q", err.Category, CategoryScenario)
	}
}

func TestHookError_Error(t *testing.T) {
	err := New("H002")
	if got, want := err.Error(), "H002: Dependency list arity changed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err.WithDetail("slot 1 had 2 deps, now 3")
	if got, want := err.Error(), "H002: Dependency list arity changed: slot 1 had 2 deps, now 3"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := &HookError{Message: "test error"}
	if plain.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "test error")
	}
}

func TestHookError_IsMatchesByCode(t *testing.T) {
	sentinel := New("H001")
	err := New("H001").WithSite("counter#1", 2).WithDetail("expected State, got Effect")

	if !stderrors.Is(err, sentinel) {
		t.Error("errors.Is should match errors with the same code")
	}
	if stderrors.Is(err, New("H002")) {
		t.Error("errors.Is should not match a different code")
	}

	wrapped := fmt.Errorf("render: %w", err)
	if !stderrors.Is(wrapped, sentinel) {
		t.Error("errors.Is should see through fmt wrapping")
	}

	joined := stderrors.Join(New("H004"), New("H005"))
	if !stderrors.Is(joined, New("H005")) {
		t.Error("errors.Is should see through errors.Join")
	}
}

func TestHookError_Wrap(t *testing.T) {
	inner := stderrors.New("boom")
	outer := New("H004").Wrap(inner)

	if outer.Unwrap() != inner {
		t.Error("Unwrap() should return wrapped error")
	}
	if !strings.HasSuffix(outer.Error(), ": boom") {
		t.Errorf("Error() = %q, should end with wrapped message", outer.Error())
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "H120") != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	he := New("H001")
	if FromError(he, "H120") != he {
		t.Error("FromError should return HookError as-is")
	}

	std := stderrors.New("disk on fire")
	result := FromError(std, "H120")
	if result.Wrapped != std {
		t.Error("Standard error should be wrapped")
	}
	if result.Code != "H120" {
		t.Errorf("Code = %q, want H120", result.Code)
	}
}

func TestSite_String(t *testing.T) {
	tests := []struct {
		name string
		site *Site
		want string
	}{
		{name: "nil", site: nil, want: ""},
		{name: "with slot", site: &Site{Instance: "a#1", Slot: 3}, want: "instance a#1, slot 3"},
		{name: "instance level", site: &Site{Instance: "a#1", Slot: -1}, want: "instance a#1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.site.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("H001").
		WithSite("counter#1", 2).
		WithDetail("expected State hook at index 2, got Effect").
		WithSuggestion("move the condition inside the effect body")

	out := err.Format()
	for _, want := range []string{
		"ERROR H001: Hook order changed between renders",
		"instance counter#1, slot 2",
		"expected State hook at index 2, got Effect",
		"Hint: move the condition inside the effect body",
		"Learn more: https://hooks.vango.dev/errors/H001",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("H003").WithSite("fetcher#4", -1)
	if got, want := err.FormatCompact(), "instance fetcher#4: H003: Write to torn-down instance"; got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFprint_Joined(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Fprint(&buf, stderrors.Join(New("H004"), stderrors.New("plain")))

	out := buf.String()
	if !strings.Contains(out, "ERROR H004: Effect body failed") {
		t.Errorf("missing hook error in output:\n%s", out)
	}
	if !strings.Contains(out, "ERROR: plain") {
		t.Errorf("missing plain error in output:\n%s", out)
	}
}

func TestFormat_CauseChain(t *testing.T) {
	DisableColors()
	defer EnableColors()

	inner := New("H004").WithSite("list#2", 1).Wrap(stderrors.New("index out of range"))
	out := New("H009").WithSite("list#2", -1).Wrap(inner).Format()

	for _, want := range []string{
		"at instance list#2\n",
		"  Cause: instance list#2, slot 1: H004: Effect body failed\n",
		"    Cause: index out of range\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six seven", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if got := strings.Join(lines, " "); got != "one two three four five six seven" {
		t.Errorf("wrapText lost words: %q", got)
	}
	if got := wrapText("supercalifragilistic ok", 10); len(got) != 2 || got[0] != "supercalifragilistic" {
		t.Errorf("long word should get its own line, got %q", got)
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should produce no lines")
	}
}

func TestRegistry(t *testing.T) {
	codes := GetAllCodes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Errorf("codes not sorted: %q before %q", codes[i-1], codes[i])
		}
	}
	for _, code := range codes {
		tmpl, ok := GetTemplate(code)
		if !ok {
			t.Fatalf("GetTemplate(%q) not found", code)
		}
		if tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("template %q is incomplete: %+v", code, tmpl)
		}
	}

	Register("H998", ErrorTemplate{Category: CategoryCLI, Message: "custom"})
	if New("H998").Message != "custom" {
		t.Error("registered template not used by New")
	}
}
