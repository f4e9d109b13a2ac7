// Package analysis turns an inbound lead into business fields by running the
// orchestrator over the leads gateway and reading its call trace.
package analysis

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Lead holds the fields the analysis prompt is built from.
type Lead struct {
	Company     string `json:"empresa"`
	TaxID       string `json:"ruc_dni"`
	Requirement string `json:"treq_requerimiento"`
	Channel     string `json:"origen"`
}

const taskHeader = "Analiza este lead:"

// Sufficient reports whether the lead has anything the model can work on.
// The channel alone is not enough.
func (l Lead) Sufficient() bool {
	return strings.TrimSpace(l.Company) != "" ||
		strings.TrimSpace(l.TaxID) != "" ||
		strings.TrimSpace(l.Requirement) != ""
}

// BuildTaskMessage renders the lead as the user message of the run. Fields are
// emitted in a fixed order and only when non-empty, so equal leads give equal prompts.
func BuildTaskMessage(l Lead) string {
	lines := []string{taskHeader}
	for _, f := range []struct{ label, value string }{
		{"Empresa", l.Company},
		{"RUC del lead", l.TaxID},
		{"Requerimiento", l.Requirement},
		{"Origen", l.Channel},
	} {
		if v := strings.TrimSpace(f.value); v != "" {
			lines = append(lines, "- "+f.label+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}

var (
	anglePattern = regexp.MustCompile(`<[^<>]*>`)
	htmlTag      = regexp.MustCompile(`(?i)^</?(a|b|body|br|div|em|font|h[1-6]|html|i|li|ol|p|span|strong|table|tbody|td|th|thead|tr|u|ul)(\s[^<>]*)?/?>$`)
)

// CleanText strips HTML markup that web forms leave in free-text fields. Block
// elements and <br> become line breaks; runs of blanks collapse to one space.
// Bracketed text that is not a known tag, such as "<urgente>", is kept.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	s = anglePattern.ReplaceAllStringFunc(s, func(t string) string {
		if htmlTag.MatchString(t) {
			return t
		}
		return html.EscapeString(t)
	})
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4").AfterHtml("\n")

	var out []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
