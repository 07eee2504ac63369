// Package durafmt renders elapsed time for chat notices.
package durafmt

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Since describes how long before now the instant then happened, e.g.
// "3 days ago". Instants in the future are clamped to "now".
func Since(then, now time.Time) string {
	if then.After(now) {
		then = now
	}
	return strings.TrimSpace(humanize.RelTime(then, now, "ago", "from now"))
}
