package markup

import (
	"regexp"
	"strings"

	"github.com/starford/vellum/internal/exchange"
)

// quote is a block kept away from the compilation passes.
type quote struct {
	format string
	raw    string
}

const defaultQuoteFormat = "txt"

var quoteFormat = regexp.MustCompile(`^[\w.]+`)

// extractQuotes replaces [quote|type]...[/quote] blocks by placeholders.
func extractQuotes(s string, q *exchange.Placeholders[quote]) string {
	const opener, closer = "[quote", "[/quote]"
	var b strings.Builder
	pos := 0
	for {
		open := nextUnescaped(s, opener, pos)
		if open < 0 {
			break
		}
		rest := s[open+len(opener):]
		format, n := "", 0
		if strings.HasPrefix(rest, "|") {
			format = quoteFormat.FindString(rest[1:])
			n = 1 + len(format)
		}
		if (n == 1) || !strings.HasPrefix(rest[n:], "]") {
			b.WriteString(s[pos : open+1])
			pos = open + 1
			continue
		}
		body := open + len(opener) + n + 1
		closing := nextUnescaped(s, closer, body)
		if closing < 0 {
			break
		}
		b.WriteString(s[pos:open])
		b.WriteString("\n\n" + q.Protect(quote{format: format, raw: strings.TrimSpace(s[body:closing])}) + "\n\n")
		pos = closing + len(closer)
	}
	b.WriteString(s[pos:])
	return b.String()
}

// extractFences replaces ```type fenced blocks by placeholders. The rest of
// the opening line is ignored and the closing fence must follow whitespace.
func extractFences(s string, q *exchange.Placeholders[quote]) string {
	const fence = "```"
	var b strings.Builder
	pos := 0
	for {
		open := nextUnescaped(s, fence, pos)
		if open < 0 {
			break
		}
		rest := s[open+len(fence):]
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			break
		}
		format := quoteFormat.FindString(rest)
		body := open + len(fence) + nl + 1
		closing := closingFence(s, body)
		if closing < 0 {
			break
		}
		b.WriteString(s[pos:open])
		raw := strings.TrimRight(s[body:closing], " \t\n")
		b.WriteString("\n\n" + q.Protect(quote{format: format, raw: raw}) + "\n\n")
		pos = closing + len(fence)
	}
	b.WriteString(s[pos:])
	return b.String()
}

func closingFence(s string, from int) int {
	for from <= len(s) {
		i := nextUnescaped(s, "```", from)
		if i < 0 {
			return -1
		}
		if i == from || s[i-1] == '\n' || s[i-1] == ' ' || s[i-1] == '\t' {
			return i
		}
		from = i + 1
	}
	return -1
}

func renderQuote(q quote) string {
	format := q.format
	if format == "" {
		format = defaultQuoteFormat
	}
	return exchange.Quote(format, exchange.EscapeXML(q.raw))
}
