package steps

import (
	"math"
	"strings"
)

// SectionStatus is one row of the review checklist.
type SectionStatus struct {
	ID        ID     `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Summary is the read-only review of the collected data.
type Summary struct {
	Sections         []SectionStatus   `json:"sections"`
	CompletedCount   int               `json:"completedCount"`
	Percentage       int               `json:"percentage"`
	Highlights       map[string]string `json:"highlights"`
	ValidationIssues []string          `json:"validationIssues"`
}

// Summarize builds the review for the given data and validation issues.
func Summarize(d Data, issues []string) Summary {
	s := Summary{
		Highlights:       map[string]string{},
		ValidationIssues: append([]string{}, issues...),
	}
	for _, def := range catalogue {
		if IsTerminal(def.ID) {
			continue
		}
		done := d.Completed(def.ID)
		if done {
			s.CompletedCount++
		}
		s.Sections = append(s.Sections, SectionStatus{ID: def.ID, Title: def.Title, Completed: done})
	}
	if n := len(s.Sections); n > 0 {
		s.Percentage = int(math.Round(float64(s.CompletedCount) / float64(n) * 100))
	}

	if r, ok := d[ProblemScoping].(*ScopingRecord); ok && r.RefinedStatement != "" {
		s.Highlights["problem"] = r.RefinedStatement
	}
	if r, ok := d[ChallengeType].(*ChallengeTypeRecord); ok && r.SelectedType != "" {
		name := r.SelectedType
		if info, ok := LookupType(r.SelectedType); ok {
			name = info.Name
		}
		s.Highlights["type"] = name
	}
	if r, ok := d[AudienceRegistration].(*AudienceRecord); ok && len(r.Audiences) > 0 {
		s.Highlights["audience"] = labels(AudienceOptions, r.Audiences)
	}
	if r, ok := d[SubmissionRequirements].(*SubmissionRecord); ok && len(r.Types) > 0 {
		s.Highlights["submissions"] = labels(SubmissionOptions, r.Types)
	}
	if r, ok := d[PrizeConfiguration].(*PrizeRecord); ok && r.TotalBudget != "" {
		s.Highlights["budget"] = string(r.TotalBudget)
	}
	if r, ok := d[TimelineMilestones].(*TimelineRecord); ok {
		if dur := r.Duration(); dur != "" {
			s.Highlights["duration"] = dur
		}
	}
	if r, ok := d[EvaluationCriteria].(*EvaluationRecord); ok && r.Model != "" {
		s.Highlights["evaluation"] = labels(ScoringModels, []string{r.Model})
	}
	if r, ok := d[CommunicationsMonitoring].(*CommunicationsRecord); ok && len(r.Channels) > 0 {
		s.Highlights["channels"] = labels(ChannelOptions, r.Channels)
	}
	return s
}

func labels(opts []Option, ids []string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		label := id
		for _, o := range opts {
			if o.ID == id {
				label = o.Label
				break
			}
		}
		out = append(out, label)
	}
	return strings.Join(out, ", ")
}
