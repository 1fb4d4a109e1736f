package attendance

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/riverside-fc/backend/internal/models"
)

const (
	clipboardDateLayout = "January 2, 2006 Monday"
	clipboardTimeLayout = "3:04 PM"
	csvTimeLayout       = "1/2/2006, 3:04:05 PM"
)

// ClipboardText renders the event header and the bracket roster as plain
// text for pasting into a group chat.
func ClipboardText(event *models.Event, records []models.AttendanceRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", event.StartDate.Format(clipboardDateLayout), capitalize(string(event.EventType)))
	b.WriteString(event.Location + "\n")
	b.WriteString(formatStartTime(event.StartTime) + "- Until Finish\n")

	coaches := "TBD"
	if names := event.CoachNames(); len(names) > 0 {
		coaches = strings.Join(names, ", ")
	}
	b.WriteString("Coaches: " + coaches + "\n")
	if event.KitColor != nil && strings.TrimSpace(*event.KitColor) != "" {
		b.WriteString(strings.TrimSpace(*event.KitColor) + " Kit\n")
	}

	b.WriteString("\nAttendance:\n")
	for i, g := range Aggregate(records).NonEmpty() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(g.Bracket + "\n\n")
		for n, r := range g.Records {
			fmt.Fprintf(&b, "%d. %s\n", n+1, r.AttendeeName)
		}
	}
	return b.String()
}

// formatStartTime turns "18:30" or "18:30:00" into "6:30 PM". Unparseable
// values are returned unchanged.
func formatStartTime(s string) string {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(clipboardTimeLayout)
		}
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// CSV renders one row per record with the check-in time in loc.
func CSV(records []models.AttendanceRecord, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Attendee Name", "Age Bracket", "Check-in Time"}); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{r.AttendeeName, r.BracketName(), r.CreatedAt.In(loc).Format(csvTimeLayout)}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// CSVFilename derives the download name from the event title.
func CSVFilename(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "event"
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\n', '\r':
			return '_'
		}
		return r
	}, title)
	return clean + "_attendance.csv"
}
