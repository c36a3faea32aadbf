// Package steps defines the wizard's fixed step catalogue and the per-step
// data records collected along the way.
//
// Each non-terminal step owns one Record variant. Records are never mutated
// in place: a step-specific Patch merges into the previous record and returns
// a fresh one with its completion flag recomputed.
package steps

// ID identifies a wizard step.
type ID string

const (
	ProblemScoping           ID = "problem-scoping"
	ChallengeType            ID = "challenge-type"
	AudienceRegistration     ID = "audience-registration"
	SubmissionRequirements   ID = "submission-requirements"
	PrizeConfiguration       ID = "prize-configuration"
	TimelineMilestones       ID = "timeline-milestones"
	EvaluationCriteria       ID = "evaluation-criteria"
	CommunicationsMonitoring ID = "communications-monitoring"
	ReviewLaunch             ID = "review-launch"
)

// Definition is the immutable description of one step.
type Definition struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Help is the guidance shown above a step's panel.
type Help struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tips        []string `json:"tips"`
}

var catalogue = []Definition{
	{ID: ProblemScoping, Title: "Problem Scoping", Description: "Define the core problem", Icon: "message-square"},
	{ID: ChallengeType, Title: "Challenge Type", Description: "Select the best format", Icon: "target"},
	{ID: AudienceRegistration, Title: "Audience & Registration", Description: "Define participants", Icon: "users"},
	{ID: SubmissionRequirements, Title: "Submission Requirements", Description: "Set submission guidelines", Icon: "file-text"},
	{ID: PrizeConfiguration, Title: "Prize Configuration", Description: "Configure rewards", Icon: "trophy"},
	{ID: TimelineMilestones, Title: "Timeline & Milestones", Description: "Set dates and duration", Icon: "calendar"},
	{ID: EvaluationCriteria, Title: "Evaluation Criteria", Description: "Define judging criteria", Icon: "clipboard-check"},
	{ID: CommunicationsMonitoring, Title: "Communications & Monitoring", Description: "Plan promotion", Icon: "megaphone"},
	{ID: ReviewLaunch, Title: "Review & Launch", Description: "Final review and launch", Icon: "eye"},
}

var help = map[ID]Help{
	ProblemScoping: {
		Title:       "Define Your Challenge Foundation",
		Description: "Let's start by clearly understanding the problem you want to solve. This foundation will guide every aspect of your challenge.",
		Tips: []string{
			"Be specific about the problem you're trying to solve",
			"Provide context about why this matters now",
			"Think about the impact of solving this problem",
		},
	},
	ChallengeType: {
		Title:       "Choose Your Challenge Format",
		Description: "Based on your problem, I'll recommend the best challenge type from Wazoku's proven formats.",
		Tips: []string{
			"Each type has different submission requirements",
			"Consider your timeline and resources",
			"Think about your audience's capabilities",
		},
	},
	AudienceRegistration: {
		Title:       "Define Your Participants",
		Description: "Who should participate in your challenge? Let's configure the right audience and registration settings.",
		Tips: []string{
			"Consider both internal and external participants",
			"Think about team vs individual submissions",
			"Decide on approval requirements for quality control",
		},
	},
	SubmissionRequirements: {
		Title:       "Set Clear Expectations",
		Description: "What should participants submit? Clear requirements lead to better submissions.",
		Tips: []string{
			"Be specific about deliverable formats",
			"Provide clear guidelines and examples",
			"Consider what's realistic for your timeline",
		},
	},
	PrizeConfiguration: {
		Title:       "Design Your Rewards",
		Description: "Motivate participants with meaningful rewards that align with your goals and budget.",
		Tips: []string{
			"Consider both monetary and recognition rewards",
			"Think about multiple prize tiers",
			"Align rewards with your expected outcomes",
		},
	},
	TimelineMilestones: {
		Title:       "Plan Your Schedule",
		Description: "Set realistic timelines that give participants enough time while maintaining momentum.",
		Tips: []string{
			"Allow time for promotion before launch",
			"Consider participant availability",
			"Plan for evaluation and winner announcement",
		},
	},
	EvaluationCriteria: {
		Title:       "Define Success Metrics",
		Description: "How will you judge submissions? Clear criteria ensure fair and effective evaluation.",
		Tips: []string{
			"Align criteria with your problem statement",
			"Consider feasibility and impact",
			"Make criteria transparent to participants",
		},
	},
	CommunicationsMonitoring: {
		Title:       "Promote and Track",
		Description: "Plan how you'll promote your challenge and monitor its progress throughout.",
		Tips: []string{
			"Use multiple channels for maximum reach",
			"Plan regular updates during the challenge",
			"Monitor engagement and adjust if needed",
		},
	},
	ReviewLaunch: {
		Title:       "Final Review",
		Description: "Review all your settings and launch your challenge with confidence.",
		Tips: []string{
			"Double-check all dates and requirements",
			"Ensure your team is ready to support participants",
			"Have a communication plan ready",
		},
	},
}

// Catalogue returns the ordered step definitions. The last entry is the
// terminal review step.
func Catalogue() []Definition {
	return append([]Definition(nil), catalogue...)
}

// IndexOf returns the position of id in the catalogue, or -1.
func IndexOf(id ID) int {
	for i, d := range catalogue {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether id is the review step.
func IsTerminal(id ID) bool {
	return id == catalogue[len(catalogue)-1].ID
}

// HelpFor returns the help content for a step.
func HelpFor(id ID) (Help, bool) {
	h, ok := help[id]
	return h, ok
}
