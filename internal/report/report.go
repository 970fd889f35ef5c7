// Package report assembles a completed session's approved sections into
// a single document, in template order, with the master-context figures
// summarized up front.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caldermed/psurd/internal/golden"
	"github.com/caldermed/psurd/internal/taskgraph"
	"github.com/caldermed/psurd/internal/template"
	"github.com/caldermed/psurd/internal/workflow"
)

// SectionExport is one rendered section.
type SectionExport struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Name   string `json:"name"`
	Agent  string `json:"agent"`
	State  string `json:"state"`
	Body   string `json:"body,omitempty"`
}

// Export is the assembled document structure.
type Export struct {
	SessionID   string          `json:"session_id"`
	Title       string          `json:"title"`
	GeneratedAt string          `json:"generated_at"`
	Complete    bool            `json:"complete"`
	Sections    []SectionExport `json:"sections"`
}

// Build assembles the export from a session state. Sections appear in
// report-number order regardless of the order they were generated in;
// unapproved sections are included as placeholders so a partial export is
// still navigable.
func Build(tpl *template.Template, st *workflow.State) *Export {
	sess := st.Session
	title := sess.Metadata.ReportTitle
	if title == "" {
		title = fmt.Sprintf("Periodic Safety Update Report: %s", sess.Metadata.DeviceName)
	}

	ex := &Export{
		SessionID:   sess.ID,
		Title:       title,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Complete:    sess.Status == workflow.StatusComplete,
	}

	ordered := make([]template.SectionSpec, len(tpl.Sections))
	copy(ordered, tpl.Sections)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	for _, sec := range ordered {
		se := SectionExport{
			ID:     sec.ID,
			Number: sec.Number,
			Name:   sec.Name,
			Agent:  sec.Agent,
			State:  string(taskgraph.StatusPending),
		}
		if task, ok := sess.Tasks[sec.ID]; ok {
			se.State = string(task.State)
			if task.State == taskgraph.StatusApproved {
				se.Body = task.Content
			}
		}
		ex.Sections = append(ex.Sections, se)
	}
	return ex
}

// Markdown renders the export as a Markdown document.
func (ex *Export) Markdown(snap golden.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", ex.Title)
	fmt.Fprintf(&b, "Generated %s\n\n", ex.GeneratedAt)

	if denom := snap.Int(golden.KeyExposureDenominator); denom > 0 {
		b.WriteString("## Key Figures\n\n")
		fmt.Fprintf(&b, "| Figure | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Units distributed | %s |\n", golden.FormatUnits(denom))
		fmt.Fprintf(&b, "| Complaints | %d |\n", snap.Int(golden.KeyTotalComplaints))
		fmt.Fprintf(&b, "| Complaints closed | %d |\n", snap.Int(golden.KeyComplaintsClosed))
		if def := snap.String(golden.KeyClosureDefinition); def != "" {
			fmt.Fprintf(&b, "| Closure definition | %s |\n", def)
		}
		b.WriteString("\n")
	}

	for _, sec := range ex.Sections {
		fmt.Fprintf(&b, "## %d. %s\n\n", sec.Number, sec.Name)
		if sec.Body != "" {
			b.WriteString(sec.Body)
			b.WriteString("\n\n")
		} else {
			fmt.Fprintf(&b, "_Section not yet approved (state: %s)._\n\n", sec.State)
		}
	}
	return b.String()
}
