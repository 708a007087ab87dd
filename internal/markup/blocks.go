package markup

import (
	"regexp"
	"strconv"
	"strings"
)

func (d *Dialect) headers(s string) string {
	return d.heading.ReplaceAllStringFunc(s, func(m string) string {
		sub := d.heading.FindStringSubmatch(m)
		n := strconv.Itoa(d.headingLevel(sub[1]))
		return "\n\n<h" + n + ">" + sub[2] + "</h" + n + ">\n\n"
	})
}

// lists turns runs of list items into nested containers. Each depth keeps
// its own container tag so bullets and numbered items can be mixed.
func (d *Dialect) lists(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))

	var (
		b      strings.Builder
		open   []string
		widths []int
		item   []string
	)
	flush := func() {
		if item != nil {
			b.WriteString("<li>" + listTitle(strings.Join(item, "\n")) + "</li>")
			item = nil
		}
	}
	closeTo := func(depth int) {
		for len(open) > depth {
			b.WriteString("</" + open[len(open)-1] + ">")
			open = open[:len(open)-1]
		}
	}
	end := func() {
		flush()
		closeTo(0)
		widths = nil
		out = append(out, "\n"+b.String()+"\n")
		b.Reset()
	}

	for _, line := range lines {
		if m := d.listItem.FindStringSubmatch(line); m != nil {
			flush()
			tag := listTag(m[2])
			depth := len(m[2])
			if d.nestByIndent {
				depth = indentDepth(&widths, len(m[1])+len(m[2]))
			}
			closeTo(depth)
			if len(open) == depth && open[depth-1] != tag {
				closeTo(depth - 1)
			}
			for len(open) < depth {
				b.WriteString("<" + tag + ">")
				open = append(open, tag)
			}
			item = []string{m[3]}
			continue
		}
		if len(open) > 0 {
			if strings.TrimSpace(line) == "" {
				end()
				out = append(out, line)
				continue
			}
			item = append(item, line)
			continue
		}
		out = append(out, line)
	}
	if len(open) > 0 {
		end()
	}
	return strings.Join(out, "\n")
}

// indentDepth maps an indentation width to a nesting depth using the widths
// of the enclosing items.
func indentDepth(widths *[]int, w int) int {
	s := *widths
	for len(s) > 0 && w < s[len(s)-1] {
		s = s[:len(s)-1]
	}
	if len(s) == 0 || w > s[len(s)-1] {
		s = append(s, w)
	}
	*widths = s
	return len(s)
}

// listTitle renders ":title: rest" as an emphasized title.
func listTitle(s string) string {
	rest, ok := strings.CutPrefix(s, ":")
	if !ok {
		return s
	}
	if i := strings.IndexByte(rest, ':'); i > 0 {
		return "<em>" + rest[:i] + "</em>" + rest[i:]
	}
	return rest
}

var tableRow = regexp.MustCompile(`^\|(.*)\|[ \t]*$`)

// tables turns runs of "|a|b|" rows into a table. Rows starting with "||"
// are header rows.
func tables(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))

	var (
		b       strings.Builder
		inTable bool
		inBody  bool
	)
	end := func() {
		if inBody {
			b.WriteString("</tbody>")
		}
		b.WriteString("</table>")
		out = append(out, "\n"+b.String()+"\n")
		b.Reset()
		inTable, inBody = false, false
	}

	for _, line := range lines {
		m := tableRow.FindStringSubmatch(line)
		if m == nil {
			if inTable {
				end()
			}
			out = append(out, line)
			continue
		}
		if !inTable {
			b.WriteString(`<table cellspacing="0" cellpadding="0">`)
			inTable = true
		}
		cells, header := strings.CutPrefix(m[1], "|")
		switch {
		case header && inBody:
			b.WriteString("</tbody><thead>")
			inBody = false
		case header:
			b.WriteString("<thead>")
		case !inBody:
			b.WriteString("<tbody>")
			inBody = true
		}
		b.WriteString("<tr>")
		for _, cell := range splitCells(cells) {
			b.WriteString(tableCell(strings.TrimSpace(cell)))
		}
		b.WriteString("</tr>")
		if header {
			b.WriteString("</thead>")
		}
	}
	if inTable {
		end()
	}
	return strings.Join(out, "\n")
}

func splitCells(s string) []string {
	cells := strings.Split(s, "|")
	for len(cells) > 1 && strings.TrimSpace(cells[len(cells)-1]) == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

func tableCell(c string) string {
	class := ""
	switch {
	case len(c) >= 2 && c[0] == '!' && c[len(c)-1] == '!':
		class, c = "important", c[1:len(c)-1]
	case len(c) >= 2 && c[0] == '@' && c[len(c)-1] == '@':
		class, c = "highlight", c[1:len(c)-1]
	}
	if class == "" {
		return "<td>" + c + "</td>"
	}
	return `<td class="` + class + `">` + c + "</td>"
}

var (
	blockSeparator = regexp.MustCompile(`\n{2,}`)
	tokensOnly     = regexp.MustCompile(`^(?:\[(?::|quote=|meta=)[^\]]+\]\s*)+$`)
	tokenSpace     = regexp.MustCompile(`\]\s+\[`)
	inlineStart    = regexp.MustCompile(`^<(?:del|sub|sup|code|strong|cite|ins|b>|u>|i>)`)
)

// paragraphs wraps blank line separated blocks. Blocks that already are
// block markup, includes or quotes are left alone.
func paragraphs(s string) string {
	var b strings.Builder
	for _, block := range blockSeparator.Split(s, -1) {
		block = strings.Trim(block, "\n")
		t := strings.TrimSpace(block)
		switch {
		case t == "":
		case tokensOnly.MatchString(t):
			b.WriteString(tokenSpace.ReplaceAllString(t, "]["))
		case strings.HasPrefix(t, "<") && !inlineStart.MatchString(t):
			b.WriteString(t)
		case strings.HasPrefix(t, "<strong") && strings.HasSuffix(t, "</strong>"),
			strings.HasPrefix(t, "<cite") && strings.HasSuffix(t, "</cite>"):
			b.WriteString(`<p class="message">` + t + "</p>")
		case t == "--":
			b.WriteString("<hr/>")
		default:
			b.WriteString("<p>" + block + "</p>")
		}
	}
	return b.String()
}

var blockTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "h7": true,
	"p": true, "ul": true, "ol": true, "li": true, "table": true, "thead": true, "tbody": true,
	"tr": true, "td": true, "blockquote": true, "hr": true, "br": true, "meta": true,
}

// linebreaks turns the remaining newlines into line breaks, except around
// block markup where they carry no meaning.
func linebreaks(s string) string {
	var b strings.Builder
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := i
		for j < len(s) && s[j] == '\n' {
			j++
		}
		before, after := s[:i], s[j:]
		b.WriteString(before)
		if j-i == 1 && b.Len() > 0 && after != "" && !endsWithBlockTag(before) && !startsWithBlockTag(after) {
			b.WriteString("<br/>")
		}
		s = after
	}
}

func endsWithBlockTag(s string) bool {
	if !strings.HasSuffix(s, ">") {
		return false
	}
	i := strings.LastIndexByte(s, '<')
	return i >= 0 && blockTags[tagName(s[i+1:])]
}

func startsWithBlockTag(s string) bool {
	return strings.HasPrefix(s, "<") && blockTags[tagName(s[1:])]
}

func tagName(s string) string {
	s = strings.TrimPrefix(s, "/")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if end < 0 {
		return s
	}
	return s[:end]
}
