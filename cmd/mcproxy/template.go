package main

import (
	"strings"
	"time"
)

// strftimeSubstitutions maps the handful of strftime directives the
// original proxy's "%Y%m%d-%H%M%S"-style output template used to their Go
// reference-time equivalents.
var strftimeSubstitutions = []struct {
	directive, layout string
}{
	{"%Y", "2006"},
	{"%m", "01"},
	{"%d", "02"},
	{"%H", "15"},
	{"%M", "04"},
	{"%S", "05"},
}

// formatTemplate expands a strftime-style output path template against t,
// preserving the original tool's per-session file naming convention
// without requiring operators to learn Go's reference-time layout syntax.
func formatTemplate(template string, t time.Time) string {
	out := template
	for _, sub := range strftimeSubstitutions {
		out = strings.ReplaceAll(out, sub.directive, t.Format(sub.layout))
	}
	return out
}
