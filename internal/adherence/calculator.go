// Package adherence derives dose statistics from persisted history.
// It only reads; nothing here touches the live reminder registry.
package adherence

import (
	"fmt"
	"sort"
	"time"

	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	dayLayout = "2006-01-02"

	// DefaultLateAfter is how long after schedule a taken dose counts as late
	DefaultLateAfter = 30 * time.Minute
)

// HistorySource returns history rows scheduled in [start, end]
type HistorySource interface {
	ListHistory(start, end time.Time) ([]reminder.DoseHistory, error)
}

// Range is an inclusive span of calendar days
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Empty reports whether the range ends before it starts
func (r Range) Empty() bool {
	return startOfDay(r.End).Before(startOfDay(r.Start))
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(dayLayout), r.End.Format(dayLayout))
}

// DayStats counts one day's history rows by status
type DayStats struct {
	Date   string                  `json:"date"`
	Counts map[reminder.Status]int `json:"counts"`
}

func (d DayStats) Taken() int  { return d.Counts[reminder.StatusTaken] }
func (d DayStats) Missed() int { return d.Counts[reminder.StatusMissed] }

// Summary aggregates a range. MedicineID 0 means every medicine.
type Summary struct {
	Range      Range   `json:"range"`
	MedicineID int64   `json:"medicine_id,omitempty"`
	Taken      int     `json:"taken"`
	Late       int     `json:"late"`
	Missed     int     `json:"missed"`
	Pending    int     `json:"pending"`
	Skipped    int     `json:"skipped"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Calculator answers adherence queries. Calendar days are taken in its
// location, which must match the location the source returns rows in.
type Calculator struct {
	source    HistorySource
	clock     clockwork.Clock
	logger    *zap.Logger
	loc       *time.Location
	lateAfter time.Duration
}

// Option configures a Calculator
type Option func(*Calculator)

// WithLocation sets the time zone calendar days are counted in
func WithLocation(loc *time.Location) Option {
	return func(c *Calculator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithLateAfter sets the late-dose threshold
func WithLateAfter(d time.Duration) Option {
	return func(c *Calculator) {
		if d > 0 {
			c.lateAfter = d
		}
	}
}

// NewCalculator creates a calculator. clock defaults to the real clock and
// the location to time.Local.
func NewCalculator(source HistorySource, clock clockwork.Clock, logger *zap.Logger, opts ...Option) *Calculator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Calculator{
		source:    source,
		clock:     clock,
		logger:    logger,
		loc:       time.Local,
		lateAfter: DefaultLateAfter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the zone calendar days are counted in
func (c *Calculator) Location() *time.Location {
	return c.loc
}

func (c *Calculator) now() time.Time {
	return c.clock.Now().In(c.loc)
}

// Percentage is taken / (taken + missed) * 100 for medicineID over the
// inclusive date range. medicineID 0 means every medicine. Pending and
// skipped rows are not counted. No decided doses yields 0.
func (c *Calculator) Percentage(medicineID int64, start, end time.Time) (float64, error) {
	rows, err := c.load(Range{Start: start, End: end})
	if err != nil {
		return 0, err
	}

	taken, total := 0, 0
	for _, h := range rows {
		if medicineID != 0 && h.MedicineID != medicineID {
			continue
		}
		switch h.Status {
		case reminder.StatusTaken:
			taken++
			total++
		case reminder.StatusMissed:
			total++
		}
	}
	return percent(taken, total), nil
}

// DailyStatistics returns per-status counts for every day that has history,
// oldest first.
func (c *Calculator) DailyStatistics(start, end time.Time) ([]DayStats, error) {
	rows, err := c.load(Range{Start: start, End: end})
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]map[reminder.Status]int)
	for _, h := range rows {
		day := h.ScheduledTime.In(c.loc).Format(dayLayout)
		counts, ok := byDay[day]
		if !ok {
			counts = make(map[reminder.Status]int)
			byDay[day] = counts
		}
		counts[h.Status]++
	}

	stats := make([]DayStats, 0, len(byDay))
	for day, counts := range byDay {
		stats = append(stats, DayStats{Date: day, Counts: counts})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date < stats[j].Date })
	return stats, nil
}

// GroupedByMedicine returns one day's history keyed by medicine name
func (c *Calculator) GroupedByMedicine(date time.Time) (map[string][]reminder.DoseHistory, error) {
	rows, err := c.load(Range{Start: date, End: date})
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]reminder.DoseHistory)
	for _, h := range rows {
		grouped[h.MedicineName] = append(grouped[h.MedicineName], h)
	}
	for name := range grouped {
		list := grouped[name]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].ScheduledTime.Before(list[j].ScheduledTime)
		})
	}
	return grouped, nil
}

// Today covers the current day
func (c *Calculator) Today() Range {
	now := c.now()
	return Range{Start: now, End: now}
}

// ThisWeek covers the last seven days up to today
func (c *Calculator) ThisWeek() Range {
	now := c.now()
	return Range{Start: now.AddDate(0, 0, -7), End: now}
}

// ThisMonth covers one month back up to today
func (c *Calculator) ThisMonth() Range {
	now := c.now()
	return Range{Start: now.AddDate(0, -1, 0), End: now}
}

// Summarize counts every status in r
func (c *Calculator) Summarize(r Range) (Summary, error) {
	return c.SummarizeMedicine(0, r)
}

// SummarizeMedicine counts every status in r for one medicine, or for all
// of them when medicineID is 0
func (c *Calculator) SummarizeMedicine(medicineID int64, r Range) (Summary, error) {
	rows, err := c.load(r)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{Range: r, MedicineID: medicineID}
	for i := range rows {
		h := &rows[i]
		if medicineID != 0 && h.MedicineID != medicineID {
			continue
		}
		s.Total++
		switch h.Status {
		case reminder.StatusTaken:
			s.Taken++
			if h.IsLate(c.lateAfter) {
				s.Late++
			}
		case reminder.StatusMissed:
			s.Missed++
		case reminder.StatusPending:
			s.Pending++
		case reminder.StatusSkipped:
			s.Skipped++
		}
	}
	s.Percentage = percent(s.Taken, s.Taken+s.Missed)
	return s, nil
}

// load expands r to whole days and reads from the source
func (c *Calculator) load(r Range) ([]reminder.DoseHistory, error) {
	start := startOfDay(r.Start.In(c.loc))
	end := startOfDay(r.End.In(c.loc)).AddDate(0, 0, 1).Add(-time.Nanosecond)
	if end.Before(start) {
		return nil, nil
	}

	rows, err := c.source.ListHistory(start, end)
	if err != nil {
		c.logger.Error("Failed to load dose history",
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return rows, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
