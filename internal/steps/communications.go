package steps

import (
	"encoding/json"
	"fmt"
	"strings"
)

var (
	ChannelOptions = []Option{
		{ID: "email", Label: "Email Campaign", Description: "Send to your mailing list"},
		{ID: "social", Label: "Social Media", Description: "Share on social platforms"},
		{ID: "intranet", Label: "Company Intranet", Description: "Internal company channels"},
		{ID: "website", Label: "Website Banner", Description: "Feature on your website"},
	}
	MetricOptions = []Option{
		{ID: "participation", Label: "Participation Rate", Description: "Track registration and submission rates"},
		{ID: "engagement", Label: "Engagement Metrics", Description: "Monitor page views, time spent, interactions"},
		{ID: "quality", Label: "Submission Quality", Description: "Track submission completeness and quality scores"},
		{ID: "feedback", Label: "Participant Feedback", Description: "Collect satisfaction and experience feedback"},
	}
	ReportingFrequencies = []string{"daily", "weekly", "biweekly", "monthly"}
)

// CommunicationsRecord is the communications-monitoring step.
type CommunicationsRecord struct {
	Channels           []string `json:"channels"`
	Metrics            []string `json:"metrics"`
	KickoffMessage     string   `json:"kickoffMessage"`
	ReportingFrequency string   `json:"reportingFrequency"`
	Completed          bool     `json:"completed"`
}

func (r *CommunicationsRecord) StepID() ID { return CommunicationsMonitoring }
func (r *CommunicationsRecord) IsCompleted() bool { return r.Completed }

func (r *CommunicationsRecord) Clone() Record {
	c := *r
	c.Channels = cloneStrings(r.Channels)
	c.Metrics = cloneStrings(r.Metrics)
	return &c
}

// CommunicationsPatch updates the communications record.
type CommunicationsPatch struct {
	Channels           []string
	Metrics            []string
	KickoffMessage     *string
	ReportingFrequency *string
}

func (p CommunicationsPatch) Step() ID { return CommunicationsMonitoring }

func (p CommunicationsPatch) Merge(prev Record) (Record, error) {
	r := &CommunicationsRecord{
		Metrics:            []string{"participation", "engagement"},
		ReportingFrequency: "weekly",
	}
	if prev != nil {
		old, ok := prev.(*CommunicationsRecord)
		if !ok {
			return nil, ErrStepMismatch
		}
		r = old.Clone().(*CommunicationsRecord)
	}
	if p.Channels != nil {
		r.Channels = cloneStrings(p.Channels)
	}
	if p.Metrics != nil {
		r.Metrics = cloneStrings(p.Metrics)
	}
	if p.KickoffMessage != nil {
		r.KickoffMessage = *p.KickoffMessage
	}
	if p.ReportingFrequency != nil {
		r.ReportingFrequency = *p.ReportingFrequency
	}
	r.Completed = len(r.Channels) > 0 && len(r.Metrics) > 0
	return r, nil
}

type communicationsSuggestion struct {
	Channels           []string `json:"channels"`
	Metrics            []string `json:"metrics"`
	KickoffMessage     string   `json:"kickoffMessage"`
	ReportingFrequency string   `json:"reportingFrequency"`
}

type communicationsPanel struct{}

func (communicationsPanel) Step() ID { return CommunicationsMonitoring }
func (communicationsPanel) Endpoint() string { return "communications-recommendations" }
func (communicationsPanel) Request(up Upstream) (any, bool) { return requestBoth(up) }

func (p communicationsPanel) Suggest(prev Record, raw json.RawMessage) (Patch, bool) {
	if r, ok := prev.(*CommunicationsRecord); ok && r.Channels != nil {
		return nil, false
	}
	return p.Accept(raw)
}

func (communicationsPanel) Accept(raw json.RawMessage) (Patch, bool) {
	s, ok := decode[communicationsSuggestion](raw)
	if !ok {
		return nil, false
	}
	p := CommunicationsPatch{Channels: s.Channels, Metrics: s.Metrics, KickoffMessage: &s.KickoffMessage}
	if p.Channels == nil {
		p.Channels = []string{}
	}
	if s.ReportingFrequency != "" {
		p.ReportingFrequency = &s.ReportingFrequency
	}
	return p, true
}

func (communicationsPanel) Edit(prev Record, verb string, args []string) (Patch, error) {
	r, _ := prev.(*CommunicationsRecord)
	if r == nil {
		r = (CommunicationsPatch{}).mustCreate()
	}
	switch verb {
	case "channel":
		if len(args) != 1 || !validOption(ChannelOptions, args[0]) {
			return nil, fmt.Errorf("channel: want email, social, intranet or website")
		}
		return CommunicationsPatch{Channels: toggle(r.Channels, args[0])}, nil
	case "metric":
		if len(args) != 1 || !validOption(MetricOptions, args[0]) {
			return nil, fmt.Errorf("metric: want participation, engagement, quality or feedback")
		}
		return CommunicationsPatch{Metrics: toggle(r.Metrics, args[0])}, nil
	case "kickoff":
		msg := strings.Join(args, " ")
		return CommunicationsPatch{KickoffMessage: &msg}, nil
	case "frequency":
		if len(args) != 1 || !contains(ReportingFrequencies, args[0]) {
			return nil, fmt.Errorf("frequency: want daily, weekly, biweekly or monthly")
		}
		return CommunicationsPatch{ReportingFrequency: &args[0]}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEdit, verb)
}

func (p CommunicationsPatch) mustCreate() *CommunicationsRecord {
	r, _ := p.Merge(nil)
	return r.(*CommunicationsRecord)
}
