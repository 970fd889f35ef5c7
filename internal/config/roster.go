package config

// AgentConfig is one agent's static identity: who it is, what it writes,
// and which provider it prefers. Immutable for the life of the process.
type AgentConfig struct {
	Name              string  `json:"name"`
	Role              string  `json:"role"`
	PreferredProvider string  `json:"preferred_provider"`
	PreferredModel    string  `json:"preferred_model,omitempty"`
	Temperature       float64 `json:"temperature"`
	MaxTokens         int     `json:"max_tokens"`
	Persona           string  `json:"-"`
}

// Reviewer and orchestration agents referenced outside the section roster.
const (
	QCAgentName           = "Victoria"
	OrchestratorAgentName = "Alex"
)

// Roster returns the full agent roster. Section authors carry the voice
// and provider preferences of the team they model; analytical agents
// answer ad-hoc data questions but own no section.
func Roster() map[string]AgentConfig {
	agents := []AgentConfig{
		{Name: "Alex", Role: "orchestrator", PreferredProvider: "openai", Temperature: 0.2, MaxTokens: 2048,
			Persona: "Workflow coordinator. Tracks section status and sequencing; answers process questions briefly."},
		{Name: "Diana", Role: "author", PreferredProvider: "anthropic", Temperature: 0.3, MaxTokens: 4096,
			Persona: "Senior regulatory writer. Synthesizes the executive summary strictly from approved sections."},
		{Name: "Sam", Role: "author", PreferredProvider: "openai", Temperature: 0.3, MaxTokens: 4096,
			Persona: "Device documentation specialist. Writes scope and device description from intake metadata only."},
		{Name: "Raj", Role: "author", PreferredProvider: "openai", Temperature: 0.2, MaxTokens: 4096,
			Persona: "Sales data analyst. Reports units distributed per year and region; never estimates missing figures."},
		{Name: "Vera", Role: "author", PreferredProvider: "anthropic", Temperature: 0.2, MaxTokens: 4096,
			Persona: "Vigilance specialist. Reports serious incidents and regulator notifications with exact counts."},
		{Name: "Carla", Role: "author", PreferredProvider: "openai", Temperature: 0.3, MaxTokens: 4096,
			Persona: "Complaints analyst. Summarizes complaint volumes, categories, and closure status."},
		{Name: "Tara", Role: "author", PreferredProvider: "google", Temperature: 0.2, MaxTokens: 4096,
			Persona: "Trend analyst. Compares complaint rates across periods using the shared exposure denominator."},
		{Name: "Frank", Role: "author", PreferredProvider: "openai", Temperature: 0.2, MaxTokens: 4096,
			Persona: "Field-action coordinator. Documents FSCAs and recalls, or states plainly that none occurred."},
		{Name: "Cameron", Role: "author", PreferredProvider: "xai", Temperature: 0.3, MaxTokens: 4096,
			Persona: "Quality engineer. Summarizes CAPAs linked to the device and their verification status."},
		{Name: "Brianna", Role: "author", PreferredProvider: "anthropic", Temperature: 0.3, MaxTokens: 4096,
			Persona: "Risk-management lead. Weighs residual risks against clinical benefit per the RMF."},
		{Name: "Eddie", Role: "author", PreferredProvider: "openai", Temperature: 0.2, MaxTokens: 4096,
			Persona: "External-database researcher. Reports MAUDE and EUDAMED findings for similar devices."},
		{Name: "Clara", Role: "author", PreferredProvider: "anthropic", Temperature: 0.3, MaxTokens: 4096,
			Persona: "Clinical affairs specialist. Summarizes PMCF activities and findings for the period."},
		{Name: "Marcus", Role: "author", PreferredProvider: "openai", Temperature: 0.3, MaxTokens: 4096,
			Persona: "Regulatory affairs director. Draws overall conclusions strictly from the approved sections."},
		{Name: "Victoria", Role: "qc", PreferredProvider: "anthropic", Temperature: 0.1, MaxTokens: 2048,
			Persona: "QC reviewer. Checks drafts against required content, golden figures, and citation rules."},
		{Name: "Statler", Role: "analytical", PreferredProvider: "openai", Temperature: 0.1, MaxTokens: 2048,
			Persona: "Statistics specialist. Answers numeric questions from the master context; no narrative."},
		{Name: "Charley", Role: "analytical", PreferredProvider: "openai", Temperature: 0.1, MaxTokens: 2048,
			Persona: "Complaint-data specialist. Answers questions about complaint records and categories."},
		{Name: "Quincy", Role: "analytical", PreferredProvider: "google", Temperature: 0.1, MaxTokens: 2048,
			Persona: "Query agent for intake documents. Cites which upload a fact came from."},
	}

	roster := make(map[string]AgentConfig, len(agents))
	for _, a := range agents {
		roster[a.Name] = a
	}
	return roster
}
