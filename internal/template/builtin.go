package template

// EUUKMDRID is the identifier of the built-in EU MDR + UK MDR template.
const EUUKMDRID = "eu_uk_mdr"

// Builtin returns the built-in MDCG 2022-21 PSUR template: thirteen
// sections A-M in dependency order. Data sections come first, analysis
// builds on them, the conclusions section synthesizes everything, and the
// executive summary is written last.
func Builtin() *Template {
	return &Template{
		ID:              EUUKMDRID,
		Name:            "EU MDR + UK MDR PSUR",
		Jurisdiction:    "EU/UK",
		RegulatoryBasis: "MDR 2017/745 Article 86, MDCG 2022-21",
		Sections: []SectionSpec{
			{
				ID: "C", Number: 3, Name: "Sales and Distribution", Agent: "Raj",
				Purpose:         "Units distributed by year and region; the exposure denominator",
				RequiredContent: []string{"units distributed", "denominator", "region"},
				WordLimit:       700,
			},
			{
				ID: "D", Number: 4, Name: "Serious Incidents and Vigilance", Agent: "Vera",
				Purpose:         "Serious incident counts, classification, and rates",
				RequiredContent: []string{"serious incident", "vigilance", "rate"},
				WordLimit:       800,
			},
			{
				ID: "E", Number: 5, Name: "Customer Feedback and Complaints", Agent: "Carla",
				Purpose:         "Complaint summary with rates against the Section C denominator",
				RequiredContent: []string{"complaint", "rate", "severity"},
				WordLimit:       800,
				DependsOn:       []string{"C"},
			},
			{
				ID: "F", Number: 6, Name: "Complaints Management", Agent: "Carla",
				Purpose:         "Investigation and closure status of complaints",
				RequiredContent: []string{"investigation", "closure", "root cause"},
				WordLimit:       700,
				DependsOn:       []string{"E"},
			},
			{
				ID: "G", Number: 7, Name: "Trend Analysis", Agent: "Tara",
				Purpose:         "Signal detection and trend direction across C, D, and E",
				RequiredContent: []string{"trend", "signal", "control limit"},
				WordLimit:       800,
				DependsOn:       []string{"C", "D", "E"},
			},
			{
				ID: "H", Number: 8, Name: "Field Safety Corrective Actions", Agent: "Frank",
				Purpose:         "FSCA status linked to serious incidents",
				RequiredContent: []string{"FSCA", "corrective action"},
				WordLimit:       600,
				DependsOn:       []string{"D"},
			},
			{
				ID: "I", Number: 9, Name: "CAPA Summary", Agent: "Cameron",
				Purpose:         "CAPA actions referencing complaint investigations",
				RequiredContent: []string{"CAPA", "effectiveness"},
				WordLimit:       600,
				DependsOn:       []string{"E", "F"},
			},
			{
				ID: "J", Number: 10, Name: "Benefit-Risk Evaluation", Agent: "Brianna",
				Purpose:         "Overall benefit-risk balance from all evidence",
				RequiredContent: []string{"benefit", "risk", "balance"},
				WordLimit:       800,
			},
			{
				ID: "K", Number: 11, Name: "External Adverse Event Databases", Agent: "Eddie",
				Purpose:         "Systematic vigilance database search results",
				RequiredContent: []string{"database", "search", "findings"},
				WordLimit:       600,
			},
			{
				ID: "L", Number: 12, Name: "Post-Market Clinical Follow-up", Agent: "Clara",
				Purpose:         "Evidence of maintained clinical performance",
				RequiredContent: []string{"PMCF", "study", "enrollment"},
				WordLimit:       600,
			},
			{
				ID: "B", Number: 2, Name: "Scope and Device Description", Agent: "Sam",
				Purpose:         "Device characterization written after the data sections",
				RequiredContent: []string{"intended use", "classification", "variant"},
				WordLimit:       700,
				DependsOn:       []string{"C", "E", "G"},
			},
			{
				ID: "M", Number: 13, Name: "Overall Findings and Conclusions", Agent: "Marcus",
				Purpose:         "Synthesis of all evidence sections and final recommendation",
				RequiredContent: []string{"safety", "performance", "conclusion", "recommendation"},
				WordLimit:       900,
				DependsOn:       []string{"B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"},
			},
			{
				ID: "A", Number: 1, Name: "Executive Summary", Agent: "Diana",
				Purpose:         "Overview of key findings; written last",
				RequiredContent: []string{"overview", "findings", "conclusion"},
				WordLimit:       600,
				DependsOn:       []string{"B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M"},
			},
		},
	}
}
