// Package captions reads, writes and cleans SRT caption tracks.
package captions

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/asticode/go-astisub"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Read parses the SRT track at path.
func Read(path string) (*astisub.Subtitles, error) {
	subs, err := astisub.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return subs, nil
}

// Write encodes subs as SRT at path, replacing any existing file.
func Write(subs *astisub.Subtitles, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := subs.WriteToSRT(f); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

// Text joins the lines of a caption with newlines.
func Text(item *astisub.Item) string {
	lines := make([]string, len(item.Lines))
	for i, l := range item.Lines {
		lines[i] = l.String()
	}
	return strings.Join(lines, "\n")
}

// Lines splits text on newlines into caption lines.
func Lines(text string) []astisub.Line {
	var lines []astisub.Line
	for _, l := range strings.Split(text, "\n") {
		lines = append(lines, astisub.Line{Items: []astisub.LineItem{{Text: l}}})
	}
	return lines
}

// isControl matches control runes other than the line break.
var isControl = runes.Predicate(func(r rune) bool {
	return r != '\n' && unicode.IsControl(r)
})

// Clean composes text to NFC, drops stray control characters and trims
// each line. Blank lines are removed.
func Clean(text string) string {
	t := transform.Chain(norm.NFC, runes.Remove(isControl))
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	var kept []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
