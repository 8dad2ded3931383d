package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/yangwenmai/force/internal/model"
)

const dateLayout = "2006-01-02"

// deadline describes the ship date relative to now, e.g. "3 days left".
func deadline(now, shipDate time.Time) string {
	return humanize.RelTime(now, shipDate, "left", "overdue")
}

// since describes how long ago t was.
func since(now, t time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

func wordBudget(a model.Artifact) string {
	return fmt.Sprintf("%s / %s", humanize.Comma(int64(a.CurrentWordCount)), humanize.Comma(int64(a.MaxWordCount)))
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.1f", score)
}

func formatOptionalTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// shortID trims a uuid to its first segment for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
