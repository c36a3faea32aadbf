package steps

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Milestone is a named checkpoint within the challenge window.
type Milestone struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// TimelineRecord is the timeline-milestones step. Dates are kept as the
// user typed them; Duration parses them on demand.
type TimelineRecord struct {
	StartDate  string      `json:"startDate"`
	EndDate    string      `json:"endDate"`
	Milestones []Milestone `json:"milestones"`
	Completed  bool        `json:"completed"`
}

func (r *TimelineRecord) StepID() ID { return TimelineMilestones }
func (r *TimelineRecord) IsCompleted() bool { return r.Completed }

func (r *TimelineRecord) Clone() Record {
	c := *r
	if r.Milestones != nil {
		c.Milestones = append([]Milestone{}, r.Milestones...)
	}
	return &c
}

// Duration returns the challenge length as "<n> days", rounding partial
// days up. It is empty when either date is missing or unparsable, or when
// the end precedes the start.
func (r *TimelineRecord) Duration() string {
	start, ok := parseDate(r.StartDate)
	if !ok {
		return ""
	}
	end, ok := parseDate(r.EndDate)
	if !ok || end.Before(start) {
		return ""
	}
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	return strconv.Itoa(days) + " days"
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TimelinePatch updates the timeline record.
type TimelinePatch struct {
	StartDate  *string
	EndDate    *string
	Milestones []Milestone
}

func (p TimelinePatch) Step() ID { return TimelineMilestones }

func (p TimelinePatch) Merge(prev Record) (Record, error) {
	r := &TimelineRecord{}
	if prev != nil {
		old, ok := prev.(*TimelineRecord)
		if !ok {
			return nil, ErrStepMismatch
		}
		r = old.Clone().(*TimelineRecord)
	}
	if p.StartDate != nil {
		r.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		r.EndDate = *p.EndDate
	}
	if p.Milestones != nil {
		r.Milestones = append([]Milestone{}, p.Milestones...)
	}
	r.Completed = r.StartDate != "" && r.EndDate != ""
	return r, nil
}

type timelineSuggestion struct {
	StartDate  string      `json:"startDate"`
	EndDate    string      `json:"endDate"`
	Milestones []Milestone `json:"milestones"`
}

type timelinePanel struct{}

func (timelinePanel) Step() ID { return TimelineMilestones }
func (timelinePanel) Endpoint() string { return "timeline-recommendations" }
func (timelinePanel) Request(up Upstream) (any, bool) { return requestBoth(up) }

func (p timelinePanel) Suggest(prev Record, raw json.RawMessage) (Patch, bool) {
	if r, ok := prev.(*TimelineRecord); ok && r.StartDate != "" {
		return nil, false
	}
	return p.Accept(raw)
}

func (timelinePanel) Accept(raw json.RawMessage) (Patch, bool) {
	s, ok := decode[timelineSuggestion](raw)
	if !ok {
		return nil, false
	}
	p := TimelinePatch{StartDate: &s.StartDate, EndDate: &s.EndDate, Milestones: s.Milestones}
	if p.Milestones == nil {
		p.Milestones = []Milestone{}
	}
	return p, true
}

func (timelinePanel) Edit(prev Record, verb string, args []string) (Patch, error) {
	r, _ := prev.(*TimelineRecord)
	if r == nil {
		r = &TimelineRecord{}
	}
	switch verb {
	case "start", "end":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: want <YYYY-MM-DD>", verb)
		}
		if _, ok := parseDate(args[0]); !ok {
			return nil, fmt.Errorf("%s: invalid date %q", verb, args[0])
		}
		if verb == "start" {
			return TimelinePatch{StartDate: &args[0]}, nil
		}
		return TimelinePatch{EndDate: &args[0]}, nil
	case "add":
		return TimelinePatch{Milestones: append(append([]Milestone{}, r.Milestones...), Milestone{})}, nil
	case "remove":
		if len(args) != 1 {
			return nil, fmt.Errorf("remove: want <index>")
		}
		i, err := parseIndex(args[0], len(r.Milestones))
		if err != nil {
			return nil, fmt.Errorf("remove: %w", err)
		}
		ms := append(append([]Milestone{}, r.Milestones[:i]...), r.Milestones[i+1:]...)
		return TimelinePatch{Milestones: ms}, nil
	case "milestone":
		if len(args) < 3 {
			return nil, fmt.Errorf("milestone: want <index> name|date|description <value>")
		}
		i, err := parseIndex(args[0], len(r.Milestones))
		if err != nil {
			return nil, fmt.Errorf("milestone: %w", err)
		}
		ms := append([]Milestone{}, r.Milestones...)
		v := strings.Join(args[2:], " ")
		switch args[1] {
		case "name":
			ms[i].Name = v
		case "date":
			ms[i].Date = v
		case "description":
			ms[i].Description = v
		default:
			return nil, fmt.Errorf("milestone: unknown field %q", args[1])
		}
		return TimelinePatch{Milestones: ms}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEdit, verb)
}
