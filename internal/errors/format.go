package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// textWidth is the wrap width of detail paragraphs.
const textWidth = 70

// colorEnabled controls whether ANSI colors are used.
var colorEnabled = true

// DisableColors disables ANSI color output.
func DisableColors() {
	colorEnabled = false
}

// EnableColors enables ANSI color output.
func EnableColors() {
	colorEnabled = true
}

// style renders text with an SGR sequence when colors are enabled.
type style string

const (
	styleError  style = "1;31"
	styleWarn   style = "1;33"
	styleTitle  style = "1;37"
	styleSite   style = "36"
	styleMuted  style = "90"
	styleLink   style = "4;34"
	styleAccent style = "33"
)

func (s style) apply(text string) string {
	if !colorEnabled || text == "" {
		return text
	}
	return "\033[" + string(s) + "m" + text + "\033[0m"
}

// headerStyle picks the banner color of a category. Failures of user
// code inside effects are warnings; everything else is an error.
func headerStyle(c Category) style {
	if c == CategoryEffect {
		return styleWarn
	}
	return styleError
}

// Format returns a multi-line rendering of the error for terminals:
// banner, site, detail, registered explanation, cause chain, hint and
// documentation link.
func (e *HookError) Format() string {
	var b strings.Builder

	banner := "ERROR:"
	title := e.Message
	if e.Code != "" {
		banner = "ERROR"
		title = e.Code + ": " + e.Message
	}
	fmt.Fprintf(&b, "\n%s %s\n", headerStyle(e.Category).apply(banner), styleTitle.apply(title))

	if e.Site != nil {
		fmt.Fprintf(&b, "  %s %s\n", styleMuted.apply("at"), styleSite.apply(e.Site.String()))
	}
	b.WriteString("\n")

	paragraph(&b, e.Detail, "")
	if explain := e.Explain(); explain != e.Detail {
		paragraph(&b, explain, styleMuted)
	}

	depth := 0
	for cause := e.Wrapped; cause != nil; depth++ {
		indent := strings.Repeat("  ", depth+1)
		next, ok := cause.(*HookError)
		if !ok {
			fmt.Fprintf(&b, "%s%s %s\n", indent, styleAccent.apply("Cause:"), cause.Error())
			break
		}
		fmt.Fprintf(&b, "%s%s %s\n", indent, styleAccent.apply("Cause:"), next.FormatCompact())
		cause = next.Wrapped
	}
	if e.Wrapped != nil {
		b.WriteString("\n")
	}

	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s %s\n\n", styleSite.apply("Hint:"), e.Suggestion)
	}
	if e.DocURL != "" {
		fmt.Fprintf(&b, "  %s %s\n", styleMuted.apply("Learn more:"), styleLink.apply(e.DocURL))
	}

	return b.String()
}

// paragraph writes text wrapped and indented, followed by a blank line.
func paragraph(b *strings.Builder, text string, s style) {
	lines := wrapText(text, textWidth)
	if len(lines) == 0 {
		return
	}
	for _, line := range lines {
		b.WriteString("  ")
		b.WriteString(s.apply(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// FormatCompact returns the error on one line:
// "site: code: message (detail)".
func (e *HookError) FormatCompact() string {
	parts := make([]string, 0, 3)
	if e.Site != nil {
		parts = append(parts, e.Site.String())
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	msg := e.Message
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return strings.Join(append(parts, msg), ": ")
}

// wrapText breaks text into lines of at most width bytes at word
// boundaries. A single word longer than width gets a line of its own.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := []string{words[0]}
	for _, word := range words[1:] {
		last := &lines[len(lines)-1]
		if len(*last)+1+len(word) > width {
			lines = append(lines, word)
			continue
		}
		*last += " " + word
	}
	return lines
}

// Fprint writes a formatted error to w. Joined errors are printed one by
// one under a count.
func Fprint(w io.Writer, err error) {
	if err == nil {
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		if len(errs) > 1 {
			fmt.Fprintf(w, "%s\n", styleMuted.apply(fmt.Sprintf("%d errors", len(errs))))
		}
		for _, e := range errs {
			Fprint(w, e)
		}
		return
	}

	var he *HookError
	if stderrors.As(err, &he) {
		fmt.Fprint(w, he.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", styleError.apply("ERROR:"), err.Error())
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}
