package videoembed

import (
	"fmt"
	"strings"
)

// EmbedBase is the player endpoint every embed URL points at.
const EmbedBase = "https://www.youtube.com/embed/"

// BuildURL renders the player URL for id. Audio is always muted so browsers
// allow autoplay once active is set.
func BuildURL(id string, start int, active bool) string {
	if start < 0 {
		start = 0
	}
	autoplay := 0
	if active {
		autoplay = 1
	}

	var b strings.Builder
	b.WriteString(EmbedBase)
	b.WriteString(id)
	fmt.Fprintf(&b, "?autoplay=%d&mute=1&start=%d&controls=1&rel=0&modestbranding=1", autoplay, start)
	return b.String()
}
