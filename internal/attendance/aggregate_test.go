package attendance

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smartystreets/goconvey/convey"

	"github.com/riverside-fc/backend/internal/models"
)

func record(name string, bracket *models.AgeBracket, at time.Time) models.AttendanceRecord {
	return models.AttendanceRecord{ID: uuid.New(), AttendeeName: name, AgeBracket: bracket, CreatedAt: at}
}

func TestAggregate(t *testing.T) {
	base := time.Date(2026, 1, 17, 6, 0, 0, 0, time.UTC)

	convey.Convey("Given records with and without brackets", t, func() {
		records := []models.AttendanceRecord{
			record("A", bracketPtr(models.BracketU5), base),
			record("B", nil, base.Add(time.Minute)),
			record("C", bracketPtr(models.BracketU5), base.Add(2*time.Minute)),
		}
		rep := Aggregate(records)

		convey.Convey("The four brackets are always present in order", func() {
			convey.So(rep.Groups, convey.ShouldHaveLength, 4)
			convey.So(rep.Groups[0].Bracket, convey.ShouldEqual, "U5")
			convey.So(rep.Groups[1].Bracket, convey.ShouldEqual, "U7/U9")
			convey.So(rep.Groups[2].Bracket, convey.ShouldEqual, "U10/U12")
			convey.So(rep.Groups[3].Bracket, convey.ShouldEqual, "U13/U14")
			convey.So(rep.Groups[1].Records, convey.ShouldBeEmpty)
			convey.So(rep.Total, convey.ShouldEqual, 3)
		})

		convey.Convey("U5 holds A and C, most recent first", func() {
			u5 := rep.Groups[0].Records
			convey.So(u5, convey.ShouldHaveLength, 2)
			convey.So(u5[0].AttendeeName, convey.ShouldEqual, "C")
			convey.So(u5[1].AttendeeName, convey.ShouldEqual, "A")
		})

		convey.Convey("Other holds exactly B", func() {
			convey.So(rep.Other, convey.ShouldNotBeNil)
			convey.So(rep.Other.Records, convey.ShouldHaveLength, 1)
			convey.So(rep.Other.Records[0].AttendeeName, convey.ShouldEqual, "B")
		})
	})

	convey.Convey("Empty and unknown brackets fall into Other", t, func() {
		rep := Aggregate([]models.AttendanceRecord{
			record("D", bracketPtr(""), base),
			record("E", bracketPtr("U18"), base),
		})
		convey.So(rep.Other.Records, convey.ShouldHaveLength, 2)
	})

	convey.Convey("Other is omitted when every record has a bracket", t, func() {
		rep := Aggregate([]models.AttendanceRecord{record("A", bracketPtr(models.BracketU13U14), base)})
		convey.So(rep.Other, convey.ShouldBeNil)
		convey.So(rep.NonEmpty(), convey.ShouldHaveLength, 1)
	})
}

func TestClipboardText(t *testing.T) {
	base := time.Date(2026, 1, 17, 6, 0, 0, 0, time.UTC)

	convey.Convey("Given a Saturday training with coaches and a kit", t, func() {
		event := trainingEvent("tok")
		event.Coach = strPtr("Jo, Max ,")
		event.KitColor = strPtr("Blue")
		records := []models.AttendanceRecord{
			record("A", bracketPtr(models.BracketU5), base),
			record("B", nil, base.Add(time.Minute)),
			record("C", bracketPtr(models.BracketU5), base.Add(2*time.Minute)),
		}
		text := ClipboardText(event, records)

		convey.Convey("It renders the full roster", func() {
			want := strings.Join([]string{
				"January 17, 2026 Saturday Training",
				"Riverside Park",
				"6:00 AM- Until Finish",
				"Coaches: Jo, Max",
				"Blue Kit",
				"",
				"Attendance:",
				"U5",
				"",
				"1. C",
				"2. A",
				"",
				"Other",
				"",
				"1. B",
				"",
			}, "\n")
			convey.So(text, convey.ShouldEqual, want)
		})
	})

	convey.Convey("Given no coaches and no kit", t, func() {
		event := trainingEvent("tok")
		event.StartTime = "18:30:00"
		text := ClipboardText(event, nil)

		convey.So(text, convey.ShouldContainSubstring, "6:30 PM- Until Finish\n")
		convey.So(text, convey.ShouldContainSubstring, "Coaches: TBD\n\nAttendance:\n")
		convey.So(text, convey.ShouldNotContainSubstring, "Kit")
	})
}

func TestCSV(t *testing.T) {
	convey.Convey("Given records in a local zone", t, func() {
		loc := time.FixedZone("GMT", 0)
		records := []models.AttendanceRecord{
			record("Smith, Jo", bracketPtr(models.BracketU7U9), time.Date(2026, 1, 17, 14, 5, 9, 0, time.UTC)),
			record("Ana", nil, time.Date(2026, 1, 17, 9, 0, 0, 0, time.UTC)),
		}
		out, err := CSV(records, loc)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("It writes a header and one row per record", func() {
			lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
			convey.So(lines, convey.ShouldHaveLength, 3)
			convey.So(lines[0], convey.ShouldEqual, "Attendee Name,Age Bracket,Check-in Time")
			convey.So(lines[1], convey.ShouldEqual, `"Smith, Jo",U7/U9,"1/17/2026, 2:05:09 PM"`)
			convey.So(lines[2], convey.ShouldEqual, `Ana,,"1/17/2026, 9:00:00 AM"`)
		})
	})

	convey.Convey("The filename comes from the title", t, func() {
		convey.So(CSVFilename("Saturday Training"), convey.ShouldEqual, "Saturday Training_attendance.csv")
		convey.So(CSVFilename("U9/U10 Cup"), convey.ShouldEqual, "U9_U10 Cup_attendance.csv")
		convey.So(CSVFilename(""), convey.ShouldEqual, "event_attendance.csv")
	})
}
