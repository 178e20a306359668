package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"formloom/internal/inspect"
)

// reportView is the serialized shape of an inspection report. It mirrors
// inspect.Report with stable machine-friendly key names.
type reportView struct {
	State     string        `json:"state" yaml:"state"`
	Structure structureView `json:"structure" yaml:"structure"`
	Progress  progressView  `json:"progress" yaml:"progress"`
	Issues    []issueView   `json:"issues" yaml:"issues"`
}

type structureView struct {
	Groups  int `json:"groups" yaml:"groups"`
	Fields  int `json:"fields" yaml:"fields"`
	Options int `json:"options" yaml:"options"`
}

type progressView struct {
	Answered   int `json:"answered" yaml:"answered"`
	Skipped    int `json:"skipped" yaml:"skipped"`
	Aborted    int `json:"aborted" yaml:"aborted"`
	Unanswered int `json:"unanswered" yaml:"unanswered"`
	Filled     int `json:"filled" yaml:"filled"`
	Empty      int `json:"empty" yaml:"empty"`
	Valid      int `json:"valid" yaml:"valid"`
	Invalid    int `json:"invalid" yaml:"invalid"`
}

type issueView struct {
	Ref       string `json:"ref" yaml:"ref"`
	Scope     string `json:"scope" yaml:"scope"`
	Group     string `json:"group,omitempty" yaml:"group,omitempty"`
	Role      string `json:"role" yaml:"role"`
	Reason    string `json:"reason" yaml:"reason"`
	Message   string `json:"message" yaml:"message"`
	Severity  string `json:"severity" yaml:"severity"`
	Priority  int    `json:"priority" yaml:"priority"`
	BlockedBy string `json:"blockedBy,omitempty" yaml:"blockedBy,omitempty"`
}

func viewOf(rep inspect.Report) reportView {
	out := reportView{
		State:     string(rep.State),
		Structure: structureView(rep.Structure),
		Progress:  progressView(rep.Progress),
		Issues:    make([]issueView, 0, len(rep.Issues)),
	}
	for _, iss := range rep.Issues {
		out.Issues = append(out.Issues, issueView{
			Ref:       iss.Ref,
			Scope:     string(iss.Scope),
			Group:     iss.Group,
			Role:      string(iss.Role),
			Reason:    string(iss.Reason),
			Message:   iss.Message,
			Severity:  string(iss.Severity),
			Priority:  iss.Priority,
			BlockedBy: iss.BlockedBy,
		})
	}
	return out
}

// ReportJSON renders an inspection report as indented JSON.
func ReportJSON(rep inspect.Report) ([]byte, error) {
	return json.MarshalIndent(viewOf(rep), "", "  ")
}

// ReportYAML renders an inspection report as YAML.
func ReportYAML(rep inspect.Report) ([]byte, error) {
	return yaml.Marshal(viewOf(rep))
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	requiredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	optionalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	blockedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Console renders an inspection report for a terminal: a one-line verdict,
// a progress summary, and an issue table sorted the way the engine emitted
// it.
func Console(rep inspect.Report) string {
	var b strings.Builder
	verdict := headerStyle.Render(fmt.Sprintf("form: %s", rep.State))
	if rep.State == inspect.FormComplete {
		verdict = okStyle.Render(fmt.Sprintf("form: %s", rep.State))
	}
	b.WriteString(verdict)
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d group(s), %d field(s); %d answered, %d skipped, %d aborted, %d open\n",
		rep.Structure.Groups, rep.Structure.Fields,
		rep.Progress.Answered, rep.Progress.Skipped, rep.Progress.Aborted, rep.Progress.Unanswered)
	if len(rep.Issues) == 0 {
		return b.String()
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"#", "field", "severity", "reason", "message"})
	for i, iss := range rep.Issues {
		sev := string(iss.Severity)
		switch {
		case iss.BlockedBy != "":
			sev = blockedStyle.Render(sev)
		case iss.Severity == inspect.SeverityRequired:
			sev = requiredStyle.Render(sev)
		default:
			sev = optionalStyle.Render(sev)
		}
		msg := iss.Message
		if iss.BlockedBy != "" {
			msg = fmt.Sprintf("%s (waiting on %s)", msg, iss.BlockedBy)
		}
		tw.AppendRow(table.Row{i + 1, iss.Ref, sev, string(iss.Reason), msg})
	}
	b.WriteString(tw.Render())
	b.WriteString("\n")
	return b.String()
}
