package sheetboard

import (
	"html"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// Linkify escapes text and wraps every http(s) URL in an anchor that opens
// in a new browsing context without an opener reference.
func Linkify(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[0]+len(trimURL(text[loc[0]:loc[1]]))
		if !hasURLBody(text[start:end]) {
			continue
		}
		b.WriteString(html.EscapeString(text[last:start]))
		safe := html.EscapeString(text[start:end])
		b.WriteString(`<a href="`)
		b.WriteString(safe)
		b.WriteString(`" target="_blank" rel="noopener noreferrer">`)
		b.WriteString(safe)
		b.WriteString(`</a>`)
		last = end
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}

// trimURL drops trailing quotes and closing parens that are not balanced
// inside the URL itself.
func trimURL(u string) string {
	for len(u) > 0 {
		last := u[len(u)-1]
		switch {
		case last == '\'':
			u = u[:len(u)-1]
		case last == ')' && strings.Count(u, ")") > strings.Count(u, "("):
			u = u[:len(u)-1]
		default:
			return u
		}
	}
	return u
}

func hasURLBody(u string) bool {
	i := strings.Index(u, "://")
	return i >= 0 && len(u) > i+3
}

// UrgencyLevel is the badge variant for an urgency value.
type UrgencyLevel string

const (
	UrgencyNone   UrgencyLevel = ""
	UrgencyHigh   UrgencyLevel = "alta"
	UrgencyMedium UrgencyLevel = "media"
	UrgencyLow    UrgencyLevel = "baja"
)

// ClassifyUrgency maps a free-form urgency value to a badge level.
func ClassifyUrgency(value string) UrgencyLevel {
	v := Normalize(value)
	switch {
	case strings.Contains(v, "alta"):
		return UrgencyHigh
	case strings.Contains(v, "media"):
		return UrgencyMedium
	case v != "":
		return UrgencyLow
	default:
		return UrgencyNone
	}
}

// UrgencyBadge renders an urgency value as a styled badge.
func UrgencyBadge(value string) string {
	class := "badge-urg"
	if level := ClassifyUrgency(value); level != UrgencyNone {
		class += " " + string(level)
	}
	return `<span class="` + class + `">` + html.EscapeString(value) + `</span>`
}

// DecorateCell renders one cell as HTML according to its column role.
func DecorateCell(cols Columns, column int, cell Cell) string {
	text := cell.String()
	switch {
	case column == NoColumn:
		return html.EscapeString(text)
	case column == cols.Urgency:
		return UrgencyBadge(text)
	case column == cols.Links:
		return Linkify(text)
	default:
		return html.EscapeString(text)
	}
}
