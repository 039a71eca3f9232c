package prompt

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/scottopell/nightlies/internal/nightly"
)

// PickDiffPair walks the user through choosing a nightly and a comparison
// direction, and returns the resulting pair in chronological order (older
// first). With skipWeekends set, weekend builds are hidden and adjacency is
// measured in business days.
func PickDiffPair(nightlies []nightly.Nightly, skipWeekends bool) (older, newer nightly.Nightly, err error) {
	candidates := make([]nightly.Nightly, 0, len(nightlies))
	for _, n := range nightlies {
		if skipWeekends && n.IsWeekendBuild() {
			continue
		}
		candidates = append(candidates, n)
	}
	nightly.SortNewestFirst(candidates)

	if len(candidates) < 2 {
		return older, newer, fmt.Errorf("%w: need at least two nightlies to compare", nightly.ErrNotEnoughNightlies)
	}

	options := make([]string, len(candidates))
	for i, n := range candidates {
		options[i] = formatNightly(n)
	}

	selected, err := Select("Select a nightly to compare", options)
	if err != nil {
		return older, newer, err
	}
	base := candidates[selected]
	baseTS := base.EffectiveTimestamp()

	prev, hasPrev := findPrevConsecutive(candidates, baseTS, skipWeekends)
	next, hasNext := findNextConsecutive(candidates, baseTS, skipWeekends)

	var directions []string
	if hasPrev {
		directions = append(directions, "Compare with previous nightly")
	}
	if hasNext {
		directions = append(directions, "Compare with next nightly")
	}
	if len(directions) == 0 {
		return older, newer, fmt.Errorf("%w: no consecutive nightlies available to compare with", nightly.ErrNotEnoughNightlies)
	}

	direction, err := Select("Select comparison direction", directions)
	if err != nil {
		return older, newer, err
	}

	var other nightly.Nightly
	if directions[direction] == "Compare with previous nightly" {
		other = prev
	} else {
		other = next
	}

	if base.EffectiveTimestamp().After(other.EffectiveTimestamp()) {
		return other, base, nil
	}
	return base, other, nil
}

func formatNightly(n nightly.Nightly) string {
	ts := n.EffectiveTimestamp()
	return fmt.Sprintf("%s (%s)",
		color.GreenString(n.Tag.Name),
		color.CyanString(ts.Format("2006-01-02 15:04 UTC")))
}

func isWeekend(ts time.Time) bool {
	wd := ts.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// businessDaysBetween counts the days from start to end, excluding days
// that fall on a weekend.
func businessDaysBetween(start, end time.Time) int {
	days := int(end.Sub(start).Hours() / 24)
	if days <= 0 {
		return days
	}

	weekends := 0
	for current := start; !current.After(end); current = current.Add(24 * time.Hour) {
		if isWeekend(current) {
			weekends++
		}
	}
	return days - weekends
}

// findNextConsecutive returns the earliest nightly after fromTS that is
// still adjacent: within one calendar day, or one business day when
// skipWeekends is set (weekend builds never qualify then).
func findNextConsecutive(nightlies []nightly.Nightly, fromTS time.Time, skipWeekends bool) (nightly.Nightly, bool) {
	var best nightly.Nightly
	found := false
	for _, n := range nightlies {
		ts := n.EffectiveTimestamp()
		if !ts.After(fromTS) {
			continue
		}
		if skipWeekends {
			if isWeekend(ts) || businessDaysBetween(fromTS, ts) > 1 {
				continue
			}
		} else if int(ts.Sub(fromTS).Hours()/24) > 1 {
			continue
		}
		if !found || ts.Before(best.EffectiveTimestamp()) {
			best, found = n, true
		}
	}
	return best, found
}

// findPrevConsecutive is the mirror of findNextConsecutive, looking
// backwards from fromTS.
func findPrevConsecutive(nightlies []nightly.Nightly, fromTS time.Time, skipWeekends bool) (nightly.Nightly, bool) {
	var best nightly.Nightly
	found := false
	for _, n := range nightlies {
		ts := n.EffectiveTimestamp()
		if !ts.Before(fromTS) {
			continue
		}
		if skipWeekends {
			if isWeekend(ts) || businessDaysBetween(ts, fromTS) > 1 {
				continue
			}
		} else if int(fromTS.Sub(ts).Hours()/24) > 1 {
			continue
		}
		if !found || ts.After(best.EffectiveTimestamp()) {
			best, found = n, true
		}
	}
	return best, found
}
