package naming

import (
	"path/filepath"
	"regexp"
	"strings"
)

// illegalReplacer maps characters that are illegal on common filesystems to
// the separator.
var illegalReplacer = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	"\"", "_",
	"/", "_",
	"\\", "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

var repeatedSeparators = regexp.MustCompile(`_{2,}`)

// Sanitize makes name safe on common filesystems: illegal and control
// characters become "_", runs of "_" collapse, and "_" is trimmed from
// both ends of the base name.
func Sanitize(name string) string {
	name = illegalReplacer.Replace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, name)
	name = repeatedSeparators.ReplaceAllString(name, separator)

	ext := filepath.Ext(name)
	base := strings.Trim(strings.TrimSuffix(name, ext), separator+" ")
	return base + ext
}
