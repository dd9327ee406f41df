package domain

import (
	"regexp"
	"time"
)

// Template is a notification message stored per order status code. Subject
// and Body may contain placeholders like {OrderId} that Render substitutes
// from the event.
type Template struct {
	ID         int64     `json:"id" db:"id"`
	StatusCode int       `json:"status_code" db:"status_code"`
	Subject    string    `json:"subject" db:"subject"`
	Body       string    `json:"body" db:"body"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_]*)\}`)

// Render substitutes {Token} placeholders from values. A token without a
// value stays in the text verbatim, so a stale template renders visibly
// wrong instead of silently dropping content.
func Render(text string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		token := match[1 : len(match)-1]
		if v, ok := values[token]; ok {
			return v
		}
		return match
	})
}

func (t *Template) RenderSubject(values map[string]string) string {
	return Render(t.Subject, values)
}

func (t *Template) RenderBody(values map[string]string) string {
	return Render(t.Body, values)
}
