package record

import "strings"

// Common name suffixes to keep with the last name.
var nameSuffixes = map[string]bool{
	"jr":   true,
	"jr.":  true,
	"sr":   true,
	"sr.":  true,
	"ii":   true,
	"iii":  true,
	"iv":   true,
	"phd":  true,
	"ph.d": true,
	"md":   true,
	"m.d":  true,
}

// SplitAuthorName splits a display name into first and last name.
// Handles "Last, First" and "First Last" forms and keeps Jr/Sr/II style
// suffixes with the surname.
//
// Known limitations:
// - Multi-part surnames (von Neumann, van der Waals) keep only the final word
// - Non-Western name orders are not detected
func SplitAuthorName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}

	if i := strings.Index(name, ","); i > 0 {
		last = strings.TrimSpace(name[:i])
		rest := strings.TrimSpace(name[i+1:])
		// "Smith, Jr., John" keeps the suffix
		if j := strings.Index(rest, ","); j >= 0 && nameSuffixes[strings.ToLower(strings.TrimSpace(rest[:j]))] {
			last = last + " " + strings.TrimSpace(rest[:j])
			rest = strings.TrimSpace(rest[j+1:])
		}
		return rest, last
	}

	parts := strings.Fields(name)
	if len(parts) == 1 {
		return "", parts[0]
	}

	lastPart := strings.ToLower(strings.TrimSuffix(parts[len(parts)-1], ","))
	if nameSuffixes[lastPart] && len(parts) > 2 {
		last = parts[len(parts)-2] + " " + parts[len(parts)-1]
		first = strings.Join(parts[:len(parts)-2], " ")
	} else {
		last = parts[len(parts)-1]
		first = strings.Join(parts[:len(parts)-1], " ")
	}
	return strings.TrimSuffix(first, ","), last
}

// Surname returns the last name of a display name.
func Surname(name string) string {
	_, last := SplitAuthorName(name)
	return last
}
