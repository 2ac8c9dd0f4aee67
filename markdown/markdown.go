// Package markdown renders the Markdown subset used by text, FAQ and call to
// action sections into HTML. All input is escaped before formatting is
// applied, so the output is safe to embed without further sanitizing.
package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

var (
	reBold             = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnderscore   = regexp.MustCompile(`__(.+?)__`)
	reItalic           = regexp.MustCompile(`\*([^*]+)\*`)
	reItalicUnderscore = regexp.MustCompile(`_([^_]+)_`)
	reInlineCode       = regexp.MustCompile("`([^`]+)`")
	reLink             = regexp.MustCompile(`\[(.*?)\]\((.*?)\)(\^)?`)
	reOrderedItem      = regexp.MustCompile(`^(\d+)\.\s`)
	// ![alt](url){style} or ![alt](url){style|width|height}
	reImg = regexp.MustCompile(`\!\[(.*?)\]\((.*?)\)\{([^|}]*?)(?:\|(\d+)\|(\d+))?\}`)
	// ![alt](url) without a style block
	rePlainImg = regexp.MustCompile(`\!\[(.*?)\]\(([^)]*?)\)`)
)

// Component returns a templ.Component that renders md as HTML.
func Component(md string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		Render(&buf, md)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// HTML returns the rendered form of md.
func HTML(md string) string {
	var buf bytes.Buffer
	Render(&buf, md)
	return buf.String()
}

// Render writes the HTML representation of md to buf.
func Render(buf *bytes.Buffer, md string) {
	r := &renderer{buf: buf, anchors: make(map[string]int)}
	for _, raw := range strings.Split(md, "\n") {
		r.line(strings.TrimRight(raw, "\r"))
	}
	r.closeBlock()
	r.closeCode()
}

type block int

const (
	blockNone block = iota
	blockPara
	blockList
	blockOrdered
	blockQuote
	blockTable
)

var closeTags = map[block]string{
	blockPara:    "</p>",
	blockList:    "</ul>",
	blockOrdered: "</ol>",
	blockQuote:   "</blockquote>",
}

type renderer struct {
	buf       *bytes.Buffer
	images    int
	open      block
	tableBody bool
	inCode    bool
	codeBadge bool
	anchors   map[string]int
}

func (r *renderer) closeBlock() {
	switch r.open {
	case blockNone:
		return
	case blockTable:
		if r.tableBody {
			r.buf.WriteString("</tbody>")
		}
		r.buf.WriteString("</table>")
		r.tableBody = false
	default:
		r.buf.WriteString(closeTags[r.open])
	}
	r.open = blockNone
}

// enter closes the current block unless it is already b, and reports
// whether a new block was started.
func (r *renderer) enter(b block, openTag string) bool {
	if r.open == b {
		return false
	}
	r.closeBlock()
	r.buf.WriteString(openTag)
	r.open = b
	return true
}

func (r *renderer) closeCode() {
	if !r.inCode {
		return
	}
	r.buf.WriteString("</code></pre>")
	if r.codeBadge {
		r.buf.WriteString("</div>")
	}
	r.inCode = false
	r.codeBadge = false
}

func (r *renderer) openCode(lang string) {
	r.closeBlock()
	r.inCode = true
	if lang == "" {
		r.buf.WriteString(`<pre class="code-block"><code>`)
		return
	}
	r.codeBadge = true
	l := html.EscapeString(lang)
	r.buf.WriteString(`<div class="code-block-wrapper"><span class="code-lang code-lang-` + l + `">` + l + `</span>`)
	r.buf.WriteString(`<pre class="code-block"><code class="language-` + l + `">`)
}

func (r *renderer) line(line string) {
	if strings.HasPrefix(line, "```") {
		if r.inCode {
			r.closeCode()
		} else {
			r.openCode(strings.TrimSpace(line[3:]))
		}
		return
	}
	if r.inCode {
		r.buf.WriteString(html.EscapeString(line))
		r.buf.WriteString("\n")
		return
	}
	if strings.TrimSpace(line) == "" {
		r.closeBlock()
		return
	}

	switch {
	case strings.HasPrefix(line, "---"):
		r.closeBlock()
		r.buf.WriteString("<hr/>")
	case strings.HasPrefix(line, "#### "):
		r.heading(4, line[5:])
	case strings.HasPrefix(line, "### "):
		r.heading(3, line[4:])
	case strings.HasPrefix(line, "## "):
		r.heading(2, line[3:])
	case strings.HasPrefix(line, "# "):
		r.heading(1, line[2:])
	case strings.HasPrefix(line, "|"):
		r.tableRow(line)
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
		r.enter(blockList, "<ul>")
		r.item(line[2:])
	case reOrderedItem.MatchString(line):
		r.enter(blockOrdered, "<ol>")
		r.item(reOrderedItem.ReplaceAllString(line, ""))
	case strings.HasPrefix(line, "> "):
		if !r.enter(blockQuote, "<blockquote>") {
			r.buf.WriteString(" ")
		}
		r.buf.WriteString(r.inline(strings.TrimSpace(line[2:])))
	default:
		if !r.enter(blockPara, "<p>") {
			r.buf.WriteString(" ")
		}
		r.buf.WriteString(r.inline(strings.TrimSpace(line)))
	}
}

func (r *renderer) item(s string) {
	r.buf.WriteString("<li>")
	r.buf.WriteString(r.inline(strings.TrimSpace(s)))
	r.buf.WriteString("</li>")
}

func (r *renderer) heading(level int, s string) {
	r.closeBlock()
	s = strings.TrimSpace(s)
	tag := "h" + strconv.Itoa(level)
	r.buf.WriteString("<" + tag + ` id="` + r.anchor(s) + `">`)
	r.buf.WriteString(r.inline(s))
	r.buf.WriteString("</" + tag + ">")
}

// anchor derives a unique fragment id from heading text.
func (r *renderer) anchor(s string) string {
	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(s) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	id := strings.TrimRight(b.String(), "-")
	if id == "" {
		id = "section"
	}
	n := r.anchors[id]
	r.anchors[id] = n + 1
	if n > 0 {
		id += "-" + strconv.Itoa(n)
	}
	return id
}

func (r *renderer) tableRow(line string) {
	if r.enter(blockTable, "<table>") {
		r.buf.WriteString("<thead><tr>")
		for _, cell := range tableCells(line) {
			r.buf.WriteString("<th>" + r.inline(cell) + "</th>")
		}
		r.buf.WriteString("</tr></thead>")
		return
	}
	if !r.tableBody {
		r.buf.WriteString("<tbody>")
		r.tableBody = true
	}
	if isTableSeparator(line) {
		return
	}
	r.buf.WriteString("<tr>")
	for _, cell := range tableCells(line) {
		r.buf.WriteString("<td>" + r.inline(cell) + "</td>")
	}
	r.buf.WriteString("</tr>")
}

func tableCells(line string) []string {
	parts := strings.Split(strings.Trim(strings.TrimSpace(line), "|"), "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func isTableSeparator(line string) bool {
	for _, cell := range tableCells(line) {
		if strings.Trim(cell, "-:") != "" {
			return false
		}
	}
	return true
}

// Inline applies inline formatting (bold, italic, code, links, images) to a
// single line of text.
func Inline(s string) string {
	r := renderer{}
	return r.inline(s)
}

func (r *renderer) inline(s string) string {
	escaped := html.EscapeString(s)
	escaped = reImg.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reImg.FindStringSubmatch(m)
		width, height := "1024", "768"
		if match[4] != "" && match[5] != "" {
			width, height = match[4], match[5]
		}
		return r.img(match[1], match[2], match[3], width, height, m)
	})
	escaped = rePlainImg.ReplaceAllStringFunc(escaped, func(m string) string {
		match := rePlainImg.FindStringSubmatch(m)
		return r.img(match[1], match[2], "", "", "", m)
	})
	escaped = reLink.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reLink.FindStringSubmatch(m)
		href := SafeURL(match[2])
		if href == "" {
			return match[1]
		}
		attrs := `class="md-link"`
		if match[3] == "^" {
			attrs += ` target="_blank" rel="noopener noreferrer"`
		}
		return `<a href="` + href + `" ` + attrs + `>` + match[1] + `</a>`
	})
	// Code spans are swapped for placeholders so emphasis never applies inside them.
	var spans []string
	escaped = reInlineCode.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reInlineCode.FindStringSubmatch(m)
		spans = append(spans, "<code>"+match[1]+"</code>")
		return "\x00C" + strconv.Itoa(len(spans)-1) + "\x00"
	})
	escaped = ApplyOutsideTags(escaped, func(seg string) string {
		seg = reBold.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reBoldUnderscore.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reItalic.ReplaceAllString(seg, "<em>$1</em>")
		seg = reItalicUnderscore.ReplaceAllString(seg, "<em>$1</em>")
		return seg
	})
	for i, code := range spans {
		escaped = strings.Replace(escaped, "\x00C"+strconv.Itoa(i)+"\x00", code, 1)
	}
	return escaped
}

func (r *renderer) img(alt, rawSrc, style, width, height, fallback string) string {
	src := SafeURL(rawSrc)
	if src == "" {
		return alt
	}
	r.images++
	load := `loading="lazy"`
	if r.images == 1 {
		load = `fetchpriority="high"`
	}
	var b strings.Builder
	b.WriteString(`<img ` + load)
	if width != "" {
		b.WriteString(` width="` + width + `" height="` + height + `"`)
	}
	b.WriteString(` alt="` + alt + `" src="` + src + `"`)
	if style != "" {
		b.WriteString(` style="` + style + `"`)
	}
	b.WriteString(` decoding="async"/>`)
	return b.String()
}

// ApplyOutsideTags applies fn only to text segments outside HTML tags,
// so that formatting never touches attribute values such as URLs.
func ApplyOutsideTags(s string, fn func(string) string) string {
	var buf strings.Builder
	for len(s) > 0 {
		lt := strings.Index(s, "<")
		if lt < 0 {
			buf.WriteString(fn(s))
			break
		}
		if lt > 0 {
			buf.WriteString(fn(s[:lt]))
		}
		gt := strings.Index(s[lt:], ">")
		if gt < 0 {
			buf.WriteString(s[lt:])
			break
		}
		buf.WriteString(s[lt : lt+gt+1])
		s = s[lt+gt+1:]
	}
	return buf.String()
}

// SafeURL returns raw escaped for an HTML attribute if it is a relative
// path, a fragment, or uses an allowed scheme. Anything else yields "".
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "//") {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
