package codemodel

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffStats counts changed lines between two renderings.
type DiffStats struct {
	Added   int
	Removed int
}

func (s DiffStats) String() string {
	return fmt.Sprintf("+%d -%d lines", s.Added, s.Removed)
}

// Empty reports whether nothing changed.
func (s DiffStats) Empty() bool {
	return s.Added == 0 && s.Removed == 0
}

// Diff compares the rendered source of two models line by line.
func Diff(before, after *Model) DiffStats {
	return diffLines(before.Render(), after.Render())
}

func diffLines(before, after string) DiffStats {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var stats DiffStats
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.Added += n
		case diffmatchpatch.DiffDelete:
			stats.Removed += n
		case diffmatchpatch.DiffEqual:
		}
	}
	return stats
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
