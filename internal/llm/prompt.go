package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxExcerptChars bounds the text sent to a model.
const MaxExcerptChars = 2000

// SystemPrompt instructs the model to answer with one JSON object.
const SystemPrompt = `You extract bibliographic metadata from the first page of academic papers.
Respond with a single JSON object and nothing else, using exactly these keys:
{"authors": ["Full Name", ...], "year": 2020, "title": "...", "doi": "..."}
List authors in citation order. Use null for any value you cannot find in the text.
Do not guess.`

// Metadata is the model's answer.
type Metadata struct {
	Authors []string `json:"authors"`
	Year    flexYear `json:"year"`
	Title   string   `json:"title"`
	DOI     string   `json:"doi"`
}

// flexYear accepts 2020, "2020" and null.
type flexYear int

func (y *flexYear) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*y = 0
		return nil
	}
	if len(s) > 4 {
		s = s[:4]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*y = 0
		return nil
	}
	*y = flexYear(n)
	return nil
}

// BuildUserPrompt truncates the excerpt at a rune boundary and frames it.
func BuildUserPrompt(excerpt string) string {
	if len(excerpt) > MaxExcerptChars {
		cut := MaxExcerptChars
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}
	return "Extract the metadata from this text:\n\n" + excerpt
}

// ParseMetadata reads the first JSON object in a model reply. Models wrap
// answers in code fences or prose often enough that the object is located
// by its outer braces.
func ParseMetadata(reply string) (Metadata, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Metadata{}, fmt.Errorf("no JSON object in model reply")
	}

	var m Metadata
	if err := json.Unmarshal([]byte(reply[start:end+1]), &m); err != nil {
		return Metadata{}, fmt.Errorf("parsing model reply: %w", err)
	}

	authors := m.Authors[:0]
	for _, a := range m.Authors {
		a = strings.Join(strings.Fields(a), " ")
		if a != "" && !strings.EqualFold(a, "null") && !strings.EqualFold(a, "unknown") {
			authors = append(authors, a)
		}
	}
	m.Authors = authors
	m.Title = strings.Join(strings.Fields(m.Title), " ")
	if strings.EqualFold(m.Title, "null") || strings.EqualFold(m.Title, "unknown") {
		m.Title = ""
	}
	if m.Year < 1000 || m.Year > 9999 {
		m.Year = 0
	}
	return m, nil
}
