// Package heuristic pulls identifiers out of raw document text with
// regular expressions. Its output seeds the remote lookups and doubles as
// the lowest-priority metadata source.
package heuristic

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/source"
)

// DOI pattern: 10.XXXX/... where XXXX is 4+ digits
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// arXiv identifiers, new style (2106.15928v2) and old style (hep-th/9901001).
var (
	arxivNewPattern = regexp.MustCompile(`(?i)arxiv:\s*(\d{4}\.\d{4,5})(v\d+)?`)
	arxivOldPattern = regexp.MustCompile(`(?i)arxiv:\s*([a-z\-]+(\.[a-z]{2})?/\d{7})(v\d+)?`)
)

var yearPattern = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

const (
	// yearWindow is how much leading text is searched for a year.
	yearWindow = 3000

	// titleWindow is how many leading lines are considered for a title.
	titleWindow = 30

	minTitleLen = 20
	maxTitleLen = 250
)

// Extract returns every hint it can find in text.
func Extract(text string) source.Hints {
	h := source.Hints{
		DOI:     FindDOI(text),
		ArXivID: FindArXivID(text),
		Title:   FindTitle(text),
		Year:    FindYear(text),
	}
	if h.Year == 0 && h.ArXivID != "" {
		h.Year = yearFromArXivID(h.ArXivID)
	}
	return h
}

// FindDOI returns the first valid DOI in text, normalized.
func FindDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return record.NormalizeDOI(match)
		}
	}
	return ""
}

// isValidDOI performs basic validation on a DOI.
func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slashIdx := strings.Index(doi, "/")
	return slashIdx != -1 && slashIdx < len(doi)-1
}

// FindArXivID returns the first arXiv identifier without version suffix.
func FindArXivID(text string) string {
	if m := arxivNewPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := arxivOldPattern.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}

// yearFromArXivID maps a new-style YYMM.NNNNN id to its year.
func yearFromArXivID(id string) int {
	if len(id) < 5 || id[4] != '.' {
		return 0
	}
	yy, err := strconv.Atoi(id[:2])
	if err != nil {
		return 0
	}
	return 2000 + yy
}

// FindYear returns the most frequent plausible year near the top of the
// text. Ties go to the earliest occurrence.
func FindYear(text string) int {
	if len(text) > yearWindow {
		text = text[:yearWindow]
	}
	maxYear := time.Now().Year() + 1

	counts := make(map[int]int)
	var order []int
	for _, m := range yearPattern.FindAllString(text, -1) {
		y, _ := strconv.Atoi(m)
		if y > maxYear {
			continue
		}
		if counts[y] == 0 {
			order = append(order, y)
		}
		counts[y]++
	}

	best := 0
	for _, y := range order {
		if counts[y] > counts[best] {
			best = y
		}
	}
	return best
}

// FindTitle returns the first substantial line that does not look like a
// running header, an identifier or an affiliation.
func FindTitle(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > titleWindow {
		lines = lines[:titleWindow]
	}
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if len(line) < minTitleLen || len(line) > maxTitleLen {
			continue
		}
		if isHeaderLine(line) {
			continue
		}
		return strings.TrimRight(line, ".")
	}
	return ""
}

// isHeaderLine checks if a line is likely a header, footer or identifier.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range []string{"journal", "copyright", "arxiv:", "doi", "http", "www.", "@", "university", "proceedings", "preprint", "received", "accepted"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if strings.Contains(lower, "volume") && strings.Contains(lower, "issue") {
		return true
	}
	letters := 0
	for _, r := range line {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			letters++
		}
	}
	// page numbers, dates and tables of figures
	return letters*2 < len(line)
}
