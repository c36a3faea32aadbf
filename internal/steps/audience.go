package steps

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Option is a selectable choice on a step form.
type Option struct {
	ID          string
	Label       string
	Description string
}

var (
	AudienceOptions = []Option{
		{ID: "internal", Label: "Internal Staff", Description: "Employees within your organization"},
		{ID: "global", Label: "Global Crowd", Description: "Open to anyone worldwide"},
		{ID: "partners", Label: "Partner Network", Description: "Trusted partners and collaborators"},
		{ID: "customers", Label: "Customer Community", Description: "Your existing customers"},
	}
	ParticipationOptions = []Option{
		{ID: "individual", Label: "Individual Submissions", Description: "Participants submit individually"},
		{ID: "team", Label: "Team Submissions", Description: "Participants can form teams"},
		{ID: "both", Label: "Both Individual & Team", Description: "Allow both submission types"},
	}
)

func validOption(opts []Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}

// RegistrationSettings controls how participants sign up.
type RegistrationSettings struct {
	RequireApproval      bool   `json:"requireApproval"`
	MaxParticipants      string `json:"maxParticipants"`
	RegistrationDeadline string `json:"registrationDeadline"`
}

// AudienceRecord is the audience-registration step.
type AudienceRecord struct {
	Audiences            []string             `json:"audiences"`
	ParticipationType    string               `json:"participationType"`
	RegistrationSettings RegistrationSettings `json:"registrationSettings"`
	Completed            bool                 `json:"completed"`
}

func (r *AudienceRecord) StepID() ID { return AudienceRegistration }
func (r *AudienceRecord) IsCompleted() bool { return r.Completed }

func (r *AudienceRecord) Clone() Record {
	c := *r
	c.Audiences = cloneStrings(r.Audiences)
	return &c
}

// AudiencePatch updates the audience record. A nil Audiences slice leaves
// the selection unchanged; an empty one clears it.
type AudiencePatch struct {
	Audiences            []string
	ParticipationType    *string
	RegistrationSettings *RegistrationSettings
}

func (p AudiencePatch) Step() ID { return AudienceRegistration }

func (p AudiencePatch) Merge(prev Record) (Record, error) {
	r := &AudienceRecord{ParticipationType: "individual"}
	if prev != nil {
		old, ok := prev.(*AudienceRecord)
		if !ok {
			return nil, ErrStepMismatch
		}
		r = old.Clone().(*AudienceRecord)
	}
	if p.Audiences != nil {
		r.Audiences = cloneStrings(p.Audiences)
	}
	if p.ParticipationType != nil {
		r.ParticipationType = *p.ParticipationType
	}
	if p.RegistrationSettings != nil {
		r.RegistrationSettings = *p.RegistrationSettings
	}
	r.Completed = len(r.Audiences) > 0
	return r, nil
}

type audienceSuggestion struct {
	Audiences         []string `json:"audiences"`
	ParticipationType string   `json:"participationType"`
}

type audiencePanel struct{}

func (audiencePanel) Step() ID { return AudienceRegistration }
func (audiencePanel) Endpoint() string { return "audience-recommendations" }
func (audiencePanel) Request(up Upstream) (any, bool) { return requestBoth(up) }

func (p audiencePanel) Suggest(prev Record, raw json.RawMessage) (Patch, bool) {
	if r, ok := prev.(*AudienceRecord); ok && r.Audiences != nil {
		return nil, false
	}
	return p.Accept(raw)
}

func (audiencePanel) Accept(raw json.RawMessage) (Patch, bool) {
	s, ok := decode[audienceSuggestion](raw)
	if !ok {
		return nil, false
	}
	p := AudiencePatch{Audiences: s.Audiences}
	if p.Audiences == nil {
		p.Audiences = []string{}
	}
	if s.ParticipationType != "" {
		p.ParticipationType = &s.ParticipationType
	}
	return p, true
}

func (audiencePanel) Edit(prev Record, verb string, args []string) (Patch, error) {
	r, _ := prev.(*AudienceRecord)
	if r == nil {
		r = &AudienceRecord{}
	}
	switch verb {
	case "toggle":
		if len(args) != 1 || !validOption(AudienceOptions, args[0]) {
			return nil, fmt.Errorf("toggle: want one of internal, global, partners, customers")
		}
		return AudiencePatch{Audiences: toggle(r.Audiences, args[0])}, nil
	case "participation":
		if len(args) != 1 || !validOption(ParticipationOptions, args[0]) {
			return nil, fmt.Errorf("participation: want individual, team or both")
		}
		return AudiencePatch{ParticipationType: &args[0]}, nil
	case "approval":
		if len(args) != 1 {
			return nil, fmt.Errorf("approval: want true or false")
		}
		v, err := strconv.ParseBool(args[0])
		if err != nil {
			return nil, fmt.Errorf("approval: %w", err)
		}
		s := r.RegistrationSettings
		s.RequireApproval = v
		return AudiencePatch{RegistrationSettings: &s}, nil
	case "max":
		if len(args) != 1 {
			return nil, fmt.Errorf("max: want <participants>")
		}
		s := r.RegistrationSettings
		s.MaxParticipants = args[0]
		return AudiencePatch{RegistrationSettings: &s}, nil
	case "deadline":
		if len(args) != 1 {
			return nil, fmt.Errorf("deadline: want <YYYY-MM-DD>")
		}
		s := r.RegistrationSettings
		s.RegistrationDeadline = args[0]
		return AudiencePatch{RegistrationSettings: &s}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEdit, verb)
}
