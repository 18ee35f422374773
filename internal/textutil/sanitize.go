package textutil

import "strings"

// fileNameReplacer maps filesystem-unsafe characters to safe alternatives.
// Separator-like characters become dashes so names stay readable; the rest
// are dropped.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SanitizeFileName cleans a file name before it is stored or sent to the
// library server. Slashes, backslashes, colons, and asterisks become
// dashes; other unsafe characters are removed, and surrounding whitespace
// is trimmed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}
