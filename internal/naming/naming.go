// Package naming derives standardized Author_Year_Title filenames from
// fused metadata.
package naming

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lukeslp/reference-renamer/internal/record"
)

const (
	// UnknownAuthor replaces a missing first-author surname.
	UnknownAuthor = "Unknown"

	// UnknownYear replaces a missing year.
	UnknownYear = "XXXX"

	// UntitledPrefix starts the title token when no title is known.
	UntitledPrefix = "Untitled"

	// DefaultMaxTitleWords is how many title words go into a name.
	DefaultMaxTitleWords = 4

	// DefaultMaxBytes is the common filesystem limit on a name.
	DefaultMaxBytes = 255

	// CollisionCeiling is the highest numeric suffix tried.
	CollisionCeiling = 10000

	maxAuthorBytes    = 64
	maxExtensionBytes = 16
	fingerprintChars  = 8
	separator         = "_"
)

// ErrNameCollisionExhausted means every suffix up to CollisionCeiling was taken.
var ErrNameCollisionExhausted = errors.New("name collision suffixes exhausted")

// Options tune name synthesis.
type Options struct {
	MaxTitleWords int
	MaxBytes      int
}

// Decision is the outcome of naming one document.
type Decision struct {
	CandidateFilename string `json:"candidate_filename"`
	FinalFilename     string `json:"final_filename"`
	CollisionCount    int    `json:"collision_count"`
}

// Synthesizer builds filenames. It holds no per-run state.
type Synthesizer struct {
	maxTitleWords int
	maxBytes      int
}

// New creates a Synthesizer, filling unset options with defaults.
func New(opts Options) *Synthesizer {
	s := &Synthesizer{maxTitleWords: opts.MaxTitleWords, maxBytes: opts.MaxBytes}
	if s.maxTitleWords <= 0 {
		s.maxTitleWords = DefaultMaxTitleWords
	}
	// room for author, year, a suffix and an extension
	if s.maxBytes <= 0 || s.maxBytes > DefaultMaxBytes {
		s.maxBytes = DefaultMaxBytes
	}
	if s.maxBytes < 2*maxAuthorBytes {
		s.maxBytes = 2 * maxAuthorBytes
	}
	return s
}

// Synthesize names a document and claims the name in assigned. The
// candidate depends only on fused and ext; the final name additionally
// depends on what assigned already holds.
func (s *Synthesizer) Synthesize(fused record.FusedRecord, ext string, assigned *Assigned) (Decision, error) {
	return s.SynthesizeFor(fused, ext, assigned, "")
}

// SynthesizeFor is Synthesize for a document currently named current. The
// document's own name counts as free, so an already standardized file
// keeps its name instead of gaining a suffix.
func (s *Synthesizer) SynthesizeFor(fused record.FusedRecord, ext string, assigned *Assigned, current string) (Decision, error) {
	parts := s.tokens(fused, ext)
	candidate := parts.compose("", s.maxBytes)
	own := foldKey(current)

	assigned.mu.Lock()
	defer assigned.mu.Unlock()

	free := func(name string) bool {
		key := foldKey(name)
		if current != "" && key == own {
			return true
		}
		_, taken := assigned.names[key]
		return !taken
	}

	if free(candidate) {
		assigned.names[foldKey(candidate)] = candidate
		return Decision{CandidateFilename: candidate, FinalFilename: candidate}, nil
	}

	for n := 2; n <= CollisionCeiling; n++ {
		name := parts.compose(separator+strconv.Itoa(n), s.maxBytes)
		if !free(name) {
			continue
		}
		assigned.names[foldKey(name)] = name
		return Decision{CandidateFilename: candidate, FinalFilename: name, CollisionCount: n - 1}, nil
	}
	return Decision{CandidateFilename: candidate, CollisionCount: CollisionCeiling}, fmt.Errorf("%w: %s", ErrNameCollisionExhausted, candidate)
}

// Candidate returns the collision-free-set name for fused.
func (s *Synthesizer) Candidate(fused record.FusedRecord, ext string) string {
	return s.tokens(fused, ext).compose("", s.maxBytes)
}

type nameParts struct {
	author string
	year   string
	title  string
	ext    string
}

func (s *Synthesizer) tokens(fused record.FusedRecord, ext string) nameParts {
	return nameParts{
		author: AuthorToken(fused.FirstAuthor()),
		year:   YearToken(fused.Year.Value),
		title:  s.TitleToken(fused.Title.Value, fused.Fingerprint),
		ext:    sanitizeExtension(ext),
	}
}

// compose joins the tokens and shortens the title until the name fits.
func (p nameParts) compose(suffix string, maxBytes int) string {
	head := p.author + separator + p.year
	budget := maxBytes - len(head) - len(suffix) - len(p.ext) - len(separator)

	title := p.title
	if len(title) > budget {
		if budget <= 0 {
			title = ""
		} else {
			title = strings.TrimRight(title[:budget], separator)
		}
	}

	name := head
	if title != "" {
		name += separator + title
	}
	return Sanitize(name + suffix + p.ext)
}

// AuthorToken reduces a display name to an ASCII surname.
func AuthorToken(author string) string {
	token := asciiWord(record.FoldASCII(record.Surname(author)))
	if token == "" {
		return UnknownAuthor
	}
	if len(token) > maxAuthorBytes {
		token = token[:maxAuthorBytes]
	}
	return capitalize(token)
}

// YearToken renders a four-digit year or the placeholder.
func YearToken(year int) string {
	if year < 1000 || year > 9999 {
		return UnknownYear
	}
	return strconv.Itoa(year)
}

// TitleToken takes the first title words, capitalized and joined. A
// missing title becomes a fragment of the fingerprint so the token is
// never empty and always reproducible.
func (s *Synthesizer) TitleToken(title, fingerprint string) string {
	var words []string
	for _, w := range strings.Fields(record.FoldASCII(title)) {
		w = asciiWord(w)
		if w == "" {
			continue
		}
		words = append(words, capitalize(w))
		if len(words) == s.maxTitleWords {
			break
		}
	}
	if len(words) > 0 {
		return strings.Join(words, separator)
	}

	fp := asciiWord(fingerprint)
	if len(fp) > fingerprintChars {
		fp = fp[:fingerprintChars]
	}
	if fp == "" {
		return UntitledPrefix
	}
	return UntitledPrefix + separator + fp
}

// asciiWord keeps ASCII letters and digits.
func asciiWord(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// capitalize upper-cases a leading ASCII letter and leaves the rest alone,
// so "GPU" keeps its case and "2nd" stays "2nd".
func capitalize(w string) string {
	if w == "" || w[0] < 'a' || w[0] > 'z' {
		return w
	}
	return string(w[0]-'a'+'A') + w[1:]
}

// sanitizeExtension returns ext with a leading dot, lower-cased, limited
// to safe characters. An empty or unusable extension yields "".
func sanitizeExtension(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	ext = strings.ToLower(asciiWord(ext))
	if ext == "" {
		return ""
	}
	if len(ext) > maxExtensionBytes {
		ext = ext[:maxExtensionBytes]
	}
	return "." + ext
}
