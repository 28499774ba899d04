package export

import (
	"fmt"
	"strings"

	"github.com/lukeslp/reference-renamer/internal/record"
)

// ToBibTeX converts a citation to a BibTeX @article entry.
func ToBibTeX(c Citation) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@article{%s,\n", c.Key))

	if len(c.Authors) > 0 {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", formatAuthors(c.Authors)))
	}
	if c.Title != "" {
		b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(c.Title)))
	}
	if c.Year > 0 {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", c.Year))
	}
	if c.DOI != "" {
		b.WriteString(fmt.Sprintf("  doi = {%s},\n", c.DOI))
	}
	b.WriteString(fmt.Sprintf("  file = {%s},\n", escapeLatex(c.Filename)))

	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList converts multiple citations to BibTeX format.
func ToBibTeXList(cs []Citation) string {
	var entries []string
	for _, c := range cs {
		entries = append(entries, ToBibTeX(c))
	}
	return strings.Join(entries, "\n")
}

// formatAuthors formats authors in BibTeX style: "Last, First and Last, First"
func formatAuthors(authors []string) string {
	var formatted []string
	for _, a := range authors {
		first, last := record.SplitAuthorName(a)
		if first != "" {
			formatted = append(formatted, fmt.Sprintf("%s, %s", escapeLatex(last), escapeLatex(first)))
		} else {
			formatted = append(formatted, escapeLatex(last))
		}
	}
	return strings.Join(formatted, " and ")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
