package api

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/entities"
)

const weekHeader = " Mo  Tu  We  Th  Fr  Sa  Su"

// FormatMonth renders a month view as an HTML message: a monospace grid with
// day markers, a line per planting day and the agenda.
func FormatMonth(view calendar.MonthView) string {
	var b strings.Builder

	b.WriteString("<pre>")
	fmt.Fprintf(&b, "%s %d\n%s\n", view.Month, view.Year, weekHeader)

	first := time.Date(view.Year, view.Month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) + 6) % 7
	days := calendar.DaysIn(view.Year, view.Month)

	var week strings.Builder
	week.WriteString(strings.Repeat("    ", offset))
	for day := 1; day <= days; day++ {
		week.WriteString(dayCell(day, view.Markers[dayKey(view, day)]))
		if (offset+day)%7 == 0 || day == days {
			b.WriteString(strings.TrimRight(week.String(), " "))
			b.WriteString("\n")
			week.Reset()
		}
	}
	b.WriteString("</pre>\n")
	b.WriteString("[dd] selected  (dd) today  dd• planting\n\n")

	short := view.Month.String()[:3]
	for day := 1; day <= days; day++ {
		m := view.Markers[dayKey(view, day)]
		lead, ok := m.Lead()
		if !ok {
			continue
		}
		line := fmt.Sprintf("%s %d: %s", short, day, html.EscapeString(lead.DisplayName))
		if n := m.Overflow(); n > 0 {
			line += fmt.Sprintf(" +%d", n)
		}
		b.WriteString(line + "\n")
	}

	if len(view.Agenda) == 0 {
		b.WriteString("No plantings scheduled this month.")
		return b.String()
	}

	b.WriteString("\n<b>Agenda</b>\n")
	for _, day := range view.Agenda {
		fmt.Fprintf(&b, "📅 %s\n", day.Date)
		for _, e := range day.Entries {
			fmt.Fprintf(&b, "  • %s (%s)\n", html.EscapeString(e.Title), html.EscapeString(e.ID))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func dayKey(view calendar.MonthView, day int) string {
	return calendar.Date{Year: view.Year, Month: view.Month, Day: day}.String()
}

func dayCell(day int, m calendar.DayMarker) string {
	switch {
	case m.Selected:
		return fmt.Sprintf("[%2d]", day)
	case m.Today:
		return fmt.Sprintf("(%2d)", day)
	case len(m.Plants) > 0:
		return fmt.Sprintf(" %2d•", day)
	default:
		return fmt.Sprintf(" %2d ", day)
	}
}

// FormatGarden lists every planting of a user, one line per plant
func FormatGarden(entries []entities.CalendarEntry) string {
	if len(entries) == 0 {
		return "Your garden is empty. Add a plant with /plant Tomato"
	}

	var b strings.Builder
	b.WriteString("🌿 Your garden:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "• %s - %s (id: %s)\n", e.Date, e.Plant.DisplayName, e.ID)
	}
	b.WriteString("\nRemove a plant with /remove <id>.")
	return b.String()
}

// FormatPlantAdded describes a freshly scheduled planting
func FormatPlantAdded(entry entities.CalendarEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌱 %s added to your calendar for %s.\n\n", entry.Plant.DisplayName, entry.Date)
	if entry.Plant.SunPreference != "" {
		fmt.Fprintf(&b, "☀️ Sun: %s\n", entry.Plant.SunPreference)
	}
	if entry.Plant.WateringPreference != "" {
		fmt.Fprintf(&b, "💧 Watering: %s\n", entry.Plant.WateringPreference)
	}
	if info := strings.TrimSpace(entry.Plant.GeneralInformation); info != "" {
		b.WriteString("\n" + info + "\n")
	}
	if d, err := calendar.ParseDate(entry.Date); err == nil {
		fmt.Fprintf(&b, "\nSee it with /month %d-%02d", d.Year, int(d.Month))
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseMonthArgs reads "[YYYY-MM] [DD]". The month defaults to today's and
// the selected day is empty when none is given.
func parseMonthArgs(args, today string) (int, time.Month, string, error) {
	now, err := calendar.ParseDate(today)
	if err != nil {
		return 0, 0, "", err
	}
	year, month := now.Year, now.Month

	fields := strings.Fields(args)
	if len(fields) > 2 {
		return 0, 0, "", fmt.Errorf("too many arguments")
	}
	if len(fields) >= 1 {
		t, err := time.Parse("2006-01", fields[0])
		if err != nil {
			return 0, 0, "", fmt.Errorf("month must look like 2025-03")
		}
		year, month = t.Year(), t.Month()
	}

	selected := ""
	if len(fields) == 2 {
		day, err := strconv.Atoi(fields[1])
		if err != nil || day < 1 || day > calendar.DaysIn(year, month) {
			return 0, 0, "", fmt.Errorf("day must be between 1 and %d", calendar.DaysIn(year, month))
		}
		selected = calendar.Date{Year: year, Month: month, Day: day}.String()
	}
	return year, month, selected, nil
}

// parseLocation reads "City, Country". A missing country is allowed.
func parseLocation(args string) entities.Location {
	city, country, _ := strings.Cut(args, ",")
	return entities.Location{
		City:    strings.TrimSpace(city),
		Country: strings.TrimSpace(country),
	}
}
