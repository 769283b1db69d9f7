package budget

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// WEEK - One of the 52 fiscal weeks of a year
// =============================================================================

// WeeksPerYear is the fixed size of the week grid.
const WeeksPerYear = 52

// WeekLabelPrefix prefixes the week number in a label ("S1".."S52").
const WeekLabelPrefix = "S"

// Week is a 7-day span starting on a Monday. Dates are UTC midnights and
// EndDate is inclusive.
type Week struct {
	WeekNumber int
	WeekLabel  string
	StartDate  time.Time
	EndDate    time.Time
}

// Contains returns true if the day of t falls within [StartDate, EndDate].
func (w Week) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(w.StartDate) && !d.After(w.EndDate)
}

// Overlaps returns true if the week shares at least one day with [from, to].
func (w Week) Overlaps(from, to time.Time) bool {
	return !w.EndDate.Before(Day(from)) && !w.StartDate.After(Day(to))
}

func (w Week) String() string {
	return fmt.Sprintf("%s [%s, %s]", w.WeekLabel,
		w.StartDate.Format("2006-01-02"), w.EndDate.Format("2006-01-02"))
}

// WeekLabel returns the label for a 1-based week number.
func WeekLabel(n int) string {
	return WeekLabelPrefix + strconv.Itoa(n)
}

// ParseWeekLabel returns the week number of a label such as "S12".
func ParseWeekLabel(label string) (int, error) {
	if !strings.HasPrefix(label, WeekLabelPrefix) {
		return 0, fmt.Errorf("invalid week label %q", label)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(label, WeekLabelPrefix))
	if err != nil || n < 1 || n > WeeksPerYear {
		return 0, fmt.Errorf("invalid week label %q", label)
	}
	return n, nil
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// WEEK GRID
// =============================================================================

// GenerateWeeks returns the 52 weeks of year. The first week starts on the
// first Monday on or after January 1. Weeks are contiguous and never overlap.
func GenerateWeeks(year int) []Week {
	start := firstMonday(year)
	weeks := make([]Week, WeeksPerYear)
	for i := range weeks {
		ws := start.AddDate(0, 0, 7*i)
		weeks[i] = Week{
			WeekNumber: i + 1,
			WeekLabel:  WeekLabel(i + 1),
			StartDate:  ws,
			EndDate:    ws.AddDate(0, 0, 6),
		}
	}
	return weeks
}

func firstMonday(year int) time.Time {
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Monday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

// WeeksForSpan returns the weeks overlapping the span that starts at start
// and lasts durationDays days. A non-positive duration covers only start.
func WeeksForSpan(weeks []Week, start time.Time, durationDays int) []Week {
	end := Day(start)
	if durationDays > 1 {
		end = end.AddDate(0, 0, durationDays-1)
	}
	var out []Week
	for _, w := range weeks {
		if w.Overlaps(start, end) {
			out = append(out, w)
		}
	}
	return out
}

// CampaignWeeks returns the grid weeks of the campaign's start year that
// overlap the campaign span.
func CampaignWeeks(c Campaign) []Week {
	return WeeksForSpan(GenerateWeeks(c.StartDate.Year()), c.StartDate, c.DurationDays)
}

// WeekForDate returns the week containing t.
func WeekForDate(weeks []Week, t time.Time) (Week, bool) {
	for _, w := range weeks {
		if w.Contains(t) {
			return w, true
		}
	}
	return Week{}, false
}

// Labels extracts the week labels, preserving order.
func Labels(weeks []Week) []string {
	labels := make([]string, len(weeks))
	for i, w := range weeks {
		labels[i] = w.WeekLabel
	}
	return labels
}
