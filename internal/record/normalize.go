package record

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that Unicode decomposition does not reduce to ASCII.
var foldReplacer = strings.NewReplacer(
	"ß", "ss", "ø", "o", "Ø", "O", "ł", "l", "Ł", "L",
	"æ", "ae", "Æ", "AE", "œ", "oe", "Œ", "OE", "đ", "d", "Đ", "D",
	"þ", "th", "Þ", "Th", "ı", "i",
)

// FoldASCII strips diacritics so "Müller" becomes "Muller". Characters
// without an ASCII base are kept as they are.
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return foldReplacer.Replace(out)
}

// NormalizeDOI strips resolver prefixes and lower-cases a DOI.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			lower = strings.TrimSpace(lower[len(prefix):])
			break
		}
	}
	return strings.TrimRight(lower, ".,;:)")
}

// NormalizeTitle folds case, diacritics and whitespace for equality tests.
func NormalizeTitle(title string) string {
	t := strings.Join(strings.Fields(FoldASCII(title)), " ")
	return strings.ToLower(strings.TrimRight(t, ". "))
}

// AuthorKey reduces an author list to its ordered surnames so that
// "Smith, J." and "John Smith" group together.
func AuthorKey(authors []string) string {
	keys := make([]string, 0, len(authors))
	for _, a := range authors {
		s := strings.ToLower(alnum(FoldASCII(Surname(a))))
		if s != "" {
			keys = append(keys, s)
		}
	}
	return strings.Join(keys, "|")
}

// Fingerprint is the hex sha256 of the extracted text.
func Fingerprint(text string) string {
	return FingerprintBytes([]byte(text))
}

// FingerprintBytes is the hex sha256 of raw content.
func FingerprintBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
