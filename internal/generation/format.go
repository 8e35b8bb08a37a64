package generation

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	// raw HTML in model output passes through so formatted text re-renders unchanged
	answerMarkdown = goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))

	emptyParaLine = regexp.MustCompile(`(?m)^[ \t]*<p>\s*</p>[ \t]*\n?`)
	breakRun      = regexp.MustCompile(`(?m)(?:^[ \t]*<br\s*/?>[ \t]*(?:\n|$)){3,}`)
)

// Format renders the markdown produced by the model as HTML. Runs of three
// or more <br> lines become one and empty paragraphs are dropped. Formatting
// its own output is a no-op.
func Format(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = emptyParaLine.ReplaceAllString(text, "")
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := answerMarkdown.Convert([]byte(text), &buf); err != nil {
		// bytes.Buffer writes do not fail
		return text
	}

	out := emptyParaLine.ReplaceAllString(buf.String(), "")
	out = breakRun.ReplaceAllString(out, "<br>\n")
	return encodeBlankLines(strings.TrimSpace(out))
}

// encodeBlankLines replaces blank lines, which only occur inside <pre> and
// similar raw blocks, with newline entities. A blank line would end the
// surrounding HTML block when the output is parsed again.
func encodeBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	pending := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			pending++
			continue
		}
		out = append(out, strings.Repeat("&#10;", pending)+line)
		pending = 0
	}
	return strings.Join(out, "\n")
}
