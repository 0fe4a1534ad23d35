package calendar

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/abelzeko/garden-bot/internal/entities"
)

// DayMarker summarizes what is scheduled on one day of the grid
type DayMarker struct {
	Plants   []entities.PlantProfile // All plants for the day, in the order entries were supplied
	Selected bool
	Today    bool
}

// Lead returns the plant a renderer shows for the day, if any
func (m DayMarker) Lead() (entities.PlantProfile, bool) {
	if len(m.Plants) == 0 {
		return entities.PlantProfile{}, false
	}
	return m.Plants[0], true
}

// Overflow is the "+N" badge count: every plant after the first one shown
func (m DayMarker) Overflow() int {
	if len(m.Plants) <= 1 {
		return 0
	}
	return len(m.Plants) - 1
}

// AgendaDay is one dated section of the agenda list
type AgendaDay struct {
	Date    string
	Entries []entities.CalendarEntry
}

// MonthView is everything needed to render one visible month
type MonthView struct {
	Year    int
	Month   time.Month
	Events  []entities.CalendarEntry
	Markers map[string]DayMarker
	Agenda  []AgendaDay
}

// Aggregator filters, groups and marks calendar entries. It keeps no state
// between calls; every result is rebuilt from its inputs.
type Aggregator struct {
	logger *zap.Logger
}

// NewAggregator creates an aggregator that reports skipped records to logger
func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger}
}

type datedEntry struct {
	date  Date
	entry entities.CalendarEntry
}

// parseEntries drops entries whose stored date is not a real day
func (a *Aggregator) parseEntries(entries []entities.CalendarEntry) []datedEntry {
	out := make([]datedEntry, 0, len(entries))
	for _, e := range entries {
		d, err := ParseDate(e.Date)
		if err != nil {
			a.logger.Warn("Skipping calendar entry with malformed stored date",
				zap.String("entry_id", e.ID),
				zap.String("date", e.Date),
				zap.Error(err))
			continue
		}
		out = append(out, datedEntry{date: d, entry: e})
	}
	return out
}

// FilterByMonth returns the entries dated in year/month (month is 1-based,
// time.January..time.December), sorted ascending by date. Entries sharing a
// date keep their input order.
func (a *Aggregator) FilterByMonth(entries []entities.CalendarEntry, year int, month time.Month) []entities.CalendarEntry {
	var matched []datedEntry
	for _, de := range a.parseEntries(entries) {
		if de.date.InMonth(year, month) {
			matched = append(matched, de)
		}
	}

	slices.SortStableFunc(matched, func(x, y datedEntry) int {
		return x.date.Compare(y.date)
	})

	out := make([]entities.CalendarEntry, 0, len(matched))
	for _, de := range matched {
		out = append(out, de.entry)
	}
	return out
}

// BuildDayMarkers returns a fresh map from YYYY-MM-DD to the day's marker.
// Selecting a day merges into any marker already holding plants.
func (a *Aggregator) BuildDayMarkers(entries []entities.CalendarEntry, selectedDate, today string) map[string]DayMarker {
	markers := make(map[string]DayMarker)

	for _, de := range a.parseEntries(entries) {
		key := de.date.String()
		m := markers[key]
		m.Plants = append(m.Plants, de.entry.Plant)
		markers[key] = m
	}

	if d, ok := a.parseFlag("today", today); ok {
		key := d.String()
		m := markers[key]
		m.Today = true
		markers[key] = m
	}

	if d, ok := a.parseFlag("selected", selectedDate); ok {
		key := d.String()
		m := markers[key]
		m.Selected = true
		markers[key] = m
	}

	return markers
}

func (a *Aggregator) parseFlag(name, value string) (Date, bool) {
	if value == "" {
		return Date{}, false
	}
	d, err := ParseDate(value)
	if err != nil {
		a.logger.Warn("Ignoring malformed marker date", zap.String("marker", name), zap.Error(err))
		return Date{}, false
	}
	return d, true
}

// GroupByDate splits already sorted events into agenda sections. Entries
// with unparseable dates are skipped.
func (a *Aggregator) GroupByDate(events []entities.CalendarEntry) []AgendaDay {
	var days []AgendaDay
	for _, de := range a.parseEntries(events) {
		key := de.date.String()
		if n := len(days); n > 0 && days[n-1].Date == key {
			days[n-1].Entries = append(days[n-1].Entries, de.entry)
			continue
		}
		days = append(days, AgendaDay{Date: key, Entries: []entities.CalendarEntry{de.entry}})
	}
	return days
}

// MonthView computes the month's events, grid markers and agenda in one pass
// over a user's full entry collection.
func (a *Aggregator) MonthView(entries []entities.CalendarEntry, year int, month time.Month, selectedDate, today string) MonthView {
	events := a.FilterByMonth(entries, year, month)
	return MonthView{
		Year:    year,
		Month:   month,
		Events:  events,
		Markers: a.BuildDayMarkers(events, selectedDate, today),
		Agenda:  a.GroupByDate(events),
	}
}
