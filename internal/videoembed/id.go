package videoembed

import (
	"regexp"
	"unicode/utf16"
)

// IDLength is the length of a platform video identifier, in UTF-16 code
// units as browsers measure it.
const IDLength = 11

// Short links, /v/ and /u/x/ paths, /embed/ paths and watch query forms.
var idPattern = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// ExtractID returns the video identifier carried by ref. When ref matches
// none of the known URL shapes, or the matched segment is not IDLength long,
// ref is returned verbatim.
func ExtractID(ref string) string {
	m := idPattern.FindStringSubmatch(ref)
	if m != nil && utf16Len(m[2]) == IDLength {
		return m[2]
	}
	return ref
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
