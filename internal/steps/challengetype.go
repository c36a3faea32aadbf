package steps

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TypeInfo describes one of the supported challenge formats.
type TypeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ChallengeTypes is the catalogue of formats the wizard can recommend.
var ChallengeTypes = map[string]TypeInfo{
	"ideation":    {Name: "The Brainstorm", Description: "Generate breakthrough ideas"},
	"theoretical": {Name: "The Design", Description: "Submit conceptual designs"},
	"rtp":         {Name: "The Prototype", Description: "Submit working non-commercial prototypes"},
	"erfp":        {Name: "The Collaborator", Description: "Attract collaborators via structured proposals"},
	"prodigy":     {Name: "The Algorithm", Description: "Solve algorithmic problems with automated scoring"},
}

// LookupType finds a challenge type case-insensitively.
func LookupType(id string) (TypeInfo, bool) {
	info, ok := ChallengeTypes[strings.ToLower(id)]
	return info, ok
}

// TypeRecommendation is one ranked format suggestion.
type TypeRecommendation struct {
	ID           string  `json:"id"`
	Confidence   float64 `json:"confidence"`
	AICommentary string  `json:"aiCommentary,omitempty"`
	Weight       float64 `json:"weight"`
}

// ChallengeTypeRecord holds the ranked recommendations and the chosen type.
type ChallengeTypeRecord struct {
	Recommendations     []TypeRecommendation `json:"recommendations,omitempty"`
	SelectedType        string               `json:"selectedType,omitempty"`
	SelectedTypeDetails *TypeInfo            `json:"selectedTypeDetails,omitempty"`
	Completed           bool                 `json:"completed"`
}

func (r *ChallengeTypeRecord) StepID() ID { return ChallengeType }
func (r *ChallengeTypeRecord) IsCompleted() bool { return r.Completed }

func (r *ChallengeTypeRecord) Clone() Record {
	c := *r
	if r.Recommendations != nil {
		c.Recommendations = append([]TypeRecommendation{}, r.Recommendations...)
	}
	if r.SelectedTypeDetails != nil {
		d := *r.SelectedTypeDetails
		c.SelectedTypeDetails = &d
	}
	return &c
}

// ChallengeTypePatch updates the challenge-type record.
type ChallengeTypePatch struct {
	Recommendations []TypeRecommendation
	SelectedType    *string
}

func (p ChallengeTypePatch) Step() ID { return ChallengeType }

func (p ChallengeTypePatch) Merge(prev Record) (Record, error) {
	r := &ChallengeTypeRecord{}
	if prev != nil {
		old, ok := prev.(*ChallengeTypeRecord)
		if !ok {
			return nil, ErrStepMismatch
		}
		r = old.Clone().(*ChallengeTypeRecord)
	}
	if p.Recommendations != nil {
		r.Recommendations = append([]TypeRecommendation{}, p.Recommendations...)
		sortByWeight(r.Recommendations)
	}
	if p.SelectedType != nil {
		r.SelectedType = *p.SelectedType
		r.SelectedTypeDetails = nil
		if info, ok := LookupType(r.SelectedType); ok {
			r.SelectedTypeDetails = &info
		}
	}
	r.Completed = r.SelectedType != ""
	return r, nil
}

// SelectType picks a format.
func SelectType(id string) ChallengeTypePatch {
	return ChallengeTypePatch{SelectedType: &id}
}

// Reweight changes the weight of one recommendation and re-ranks the list.
func Reweight(prev Record, id string, weight float64) (ChallengeTypePatch, error) {
	r, _ := prev.(*ChallengeTypeRecord)
	if r == nil {
		return ChallengeTypePatch{}, fmt.Errorf("reweight %s: no recommendations", id)
	}
	recs := append([]TypeRecommendation{}, r.Recommendations...)
	found := false
	for i := range recs {
		if recs[i].ID == id {
			recs[i].Weight = weight
			found = true
		}
	}
	if !found {
		return ChallengeTypePatch{}, fmt.Errorf("reweight: unknown recommendation %q", id)
	}
	return ChallengeTypePatch{Recommendations: recs}, nil
}

func sortByWeight(recs []TypeRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Weight > recs[j].Weight })
}

type typeSuggestion struct {
	Recommendations []TypeRecommendation `json:"recommendations"`
}

// rankRecommendations keeps known types only, seeds weight from confidence
// and sorts best first.
func rankRecommendations(in []TypeRecommendation) []TypeRecommendation {
	out := make([]TypeRecommendation, 0, len(in))
	for _, rec := range in {
		if _, ok := LookupType(rec.ID); !ok {
			continue
		}
		rec.Weight = rec.Confidence
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

type challengeTypePanel struct{}

func (challengeTypePanel) Step() ID { return ChallengeType }
func (challengeTypePanel) Endpoint() string { return "recommendations" }

func (challengeTypePanel) Request(up Upstream) (any, bool) {
	return SuggestionRequest{ProblemStatement: up.ProblemStatement}, up.ProblemStatement != ""
}

func (p challengeTypePanel) Suggest(prev Record, raw json.RawMessage) (Patch, bool) {
	if r, ok := prev.(*ChallengeTypeRecord); ok && r.Recommendations != nil {
		return nil, false
	}
	return p.Accept(raw)
}

func (challengeTypePanel) Accept(raw json.RawMessage) (Patch, bool) {
	s, ok := decode[typeSuggestion](raw)
	if !ok {
		return nil, false
	}
	ranked := rankRecommendations(s.Recommendations)
	if len(ranked) == 0 {
		return nil, false
	}
	top := ranked[0].ID
	return ChallengeTypePatch{Recommendations: ranked, SelectedType: &top}, true
}

func (challengeTypePanel) Edit(prev Record, verb string, args []string) (Patch, error) {
	switch verb {
	case "select":
		if len(args) != 1 {
			return nil, fmt.Errorf("select: want <type>")
		}
		if _, ok := LookupType(args[0]); !ok {
			return nil, fmt.Errorf("select: unknown challenge type %q", args[0])
		}
		return SelectType(args[0]), nil
	case "weight":
		if len(args) != 2 {
			return nil, fmt.Errorf("weight: want <type> <value>")
		}
		w, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return nil, fmt.Errorf("weight: %w", err)
		}
		return Reweight(prev, args[0], w)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEdit, verb)
}
