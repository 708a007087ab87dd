package markup

import (
	"regexp"
	"strings"
)

// style maps a delimiter to the element it produces. Loose styles accept any
// character next to the delimiters instead of requiring word characters.
type style struct {
	delim byte
	tag   string
	loose bool
}

var (
	subscript   = regexp.MustCompile(`-\^((?:\\\^|[^\n^])*?)\^`)
	superscript = regexp.MustCompile(`\+\^((?:\\\^|[^\n^])*?)\^`)
)

// styling applies the inline styles. Sub and superscript go first since
// they share "+" with italics.
func (d *Dialect) styling(s string) string {
	s = replaceUnescaped(subscript, s, func(m []string) string { return "<sub>" + m[1] + "</sub>" })
	s = replaceUnescaped(superscript, s, func(m []string) string { return "<sup>" + m[1] + "</sup>" })
	for _, st := range d.styles {
		s = st.apply(s)
	}
	return s
}

func (st style) apply(s string) string {
	s = st.double(s)
	switch {
	case st.loose:
		s = st.single(s, looseOpen, looseClose)
	case st.delim == '_':
		s = st.single(s, wordOpen, wordClose)
	default:
		s = st.single(s, plainOpen, plainClose)
	}
	d := string(st.delim)
	return strings.ReplaceAll(s, `\`+d, d)
}

func (st style) wrap(content string) string {
	return "<" + st.tag + ">" + content + "</" + st.tag + ">"
}

// double handles the doubled delimiter form, which may span lines but never
// a blank line.
func (st style) double(s string) string {
	dd := string([]byte{st.delim, st.delim})
	var b strings.Builder
	pos := 0
	for {
		open := nextUnescaped(s, dd, pos)
		if open < 0 {
			break
		}
		closing := nextUnescaped(s, dd, open+2)
		if closing < 0 {
			break
		}
		content := s[open+2 : closing]
		if content == "" || strings.Contains(content, "\n\n") {
			b.WriteString(s[pos : open+1])
			pos = open + 1
			continue
		}
		b.WriteString(s[pos:open])
		b.WriteString(st.wrap(content))
		pos = closing + 2
	}
	b.WriteString(s[pos:])
	return b.String()
}

// boundary checks for the single delimiter form. open(s, i) is called with
// the opener index, close(s, k) with a candidate closer index.
type boundary func(s string, i int) bool

func plainOpen(s string, i int) bool  { return i+1 < len(s) && isWord(s[i+1]) }
func plainClose(s string, k int) bool { return isWord(s[k-1]) }

// "_" is a word character itself, so it needs non-word text around the pair.
func wordOpen(s string, i int) bool {
	return (i == 0 || !isWord(s[i-1])) && i+1 < len(s) && isWord(s[i+1])
}
func wordClose(s string, k int) bool {
	return isWord(s[k-1]) && (k+1 == len(s) || !isWord(s[k+1]))
}

func looseOpen(s string, i int) bool  { return i+1 < len(s) && s[i+1] != ' ' }
func looseClose(s string, k int) bool { return s[k-1] != ' ' }

// single handles the single delimiter form, which stays on one line and
// contains no tabs. Only loose styles may contain markup.
func (st style) single(s string, open, closes boundary) string {
	var b strings.Builder
	pos := 0
	for i := 0; i < len(s); i++ {
		if s[i] != st.delim || isEscaped(s, i) || !open(s, i) {
			continue
		}
		end := -1
		for k := i + 1; k < len(s); k++ {
			c := s[k]
			if c == '\t' || c == '\n' || (c == '<' && !st.loose && st.delim != '_') {
				break
			}
			if c == st.delim && k > i+1 && !isEscaped(s, k) && closes(s, k) {
				end = k
				break
			}
		}
		if end < 0 {
			continue
		}
		b.WriteString(s[pos:i])
		b.WriteString(st.wrap(s[i+1 : end]))
		pos = end + 1
		i = end
	}
	b.WriteString(s[pos:])
	return b.String()
}

func isWord(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isEscaped(s string, i int) bool {
	return i > 0 && s[i-1] == '\\'
}

// nextUnescaped returns the index of the first occurrence of sub at or after
// from that is not preceded by a backslash, or -1.
func nextUnescaped(s, sub string, from int) int {
	for from <= len(s) {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			return -1
		}
		if !isEscaped(s, from+i) {
			return from + i
		}
		from += i + 1
	}
	return -1
}

// replaceUnescaped replaces the matches of re that are not preceded by a
// backslash. fn receives the submatches.
func replaceUnescaped(re *regexp.Regexp, s string, fn func(m []string) string) string {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		if isEscaped(s, loc[0]) {
			continue
		}
		groups := make([]string, len(loc)/2)
		for g := range groups {
			if loc[2*g] >= 0 {
				groups[g] = s[loc[2*g]:loc[2*g+1]]
			}
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
