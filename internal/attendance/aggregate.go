package attendance

import (
	"slices"

	"github.com/riverside-fc/backend/internal/models"
)

// OtherGroup collects records without a known bracket.
const OtherGroup = "Other"

// Group is the check-ins for one bracket, most recent first.
type Group struct {
	Bracket string                    `json:"bracket"`
	Records []models.AttendanceRecord `json:"records"`
}

// Report is the bracket view of an event's check-ins. Groups always holds
// the four brackets in order; Other is nil when every record has a bracket.
type Report struct {
	Groups []Group `json:"groups"`
	Other  *Group  `json:"other,omitempty"`
	Total  int     `json:"total"`
}

// Aggregate partitions records by age bracket.
func Aggregate(records []models.AttendanceRecord) Report {
	rep := Report{Groups: make([]Group, len(models.AgeBrackets)), Total: len(records)}
	index := make(map[models.AgeBracket]int, len(models.AgeBrackets))
	for i, b := range models.AgeBrackets {
		rep.Groups[i] = Group{Bracket: string(b), Records: []models.AttendanceRecord{}}
		index[b] = i
	}

	var other []models.AttendanceRecord
	for _, r := range records {
		if r.AgeBracket != nil {
			if i, ok := index[*r.AgeBracket]; ok {
				rep.Groups[i].Records = append(rep.Groups[i].Records, r)
				continue
			}
		}
		other = append(other, r)
	}

	for i := range rep.Groups {
		sortNewestFirst(rep.Groups[i].Records)
	}
	if len(other) > 0 {
		sortNewestFirst(other)
		rep.Other = &Group{Bracket: OtherGroup, Records: other}
	}
	return rep
}

// NonEmpty returns the groups that have records, in report order, Other last.
func (r Report) NonEmpty() []Group {
	var out []Group
	for _, g := range r.Groups {
		if len(g.Records) > 0 {
			out = append(out, g)
		}
	}
	if r.Other != nil {
		out = append(out, *r.Other)
	}
	return out
}

func sortNewestFirst(records []models.AttendanceRecord) {
	slices.SortStableFunc(records, func(a, b models.AttendanceRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
