// internal/tui/app.go
//
// This is the interactive fill mode for formloom.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen
//
// The app walks the ready issues for one role, one field at a time. Every
// submission is applied as a single-patch batch so the document on screen
// is always a validly patched document.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"formloom/internal/form"
	"formloom/internal/inspect"
	"formloom/internal/logbook"
	"formloom/internal/patch"
)

// inputMode represents what the text input currently collects
type inputMode int

const (
	modeAnswer     inputMode = iota // A value literal for the current field
	modeSkipReason                  // A reason for skipping the current field
	modeAbortReason                 // A reason for aborting the current field
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	requiredMark = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("*")
)

// App is the fill-mode application model. This holds ALL the state.
type App struct {
	doc     *form.Document
	role    form.Role
	logbook *logbook.Logbook

	input   textinput.Model
	mode    inputMode
	issues  []inspect.Issue
	current int

	statusMsg string
	errMsg    string
	state     inspect.FormState
	answered  int
	fields    int
	quitting  bool

	width  int
	height int
}

// NewApp creates a fill-mode app for one role over a document. The document
// is cloned; read the final state with Document after the program exits.
func NewApp(doc *form.Document, role form.Role, lb *logbook.Logbook) *App {
	input := textinput.New()
	input.Placeholder = "answer"
	input.Focus()
	input.CharLimit = 0

	app := &App{
		doc:     doc.Clone(),
		role:    role,
		logbook: lb,
		input:   input,
	}
	app.refresh()
	lb.Info("fill session opened for role %s: %d issue(s) ready", role, len(app.issues))
	return app
}

// Document returns the document as last patched.
func (a *App) Document() *form.Document {
	return a.doc
}

// Done reports whether no ready issues remain for the role.
func (a *App) Done() bool {
	return len(a.issues) == 0
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and returns the new model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			a.quitting = true
			return a, tea.Quit
		case "enter":
			return a.submit()
		case "ctrl+k":
			a.mode = modeSkipReason
			a.input.Placeholder = "reason for skipping"
			a.input.SetValue("")
			return a, nil
		case "ctrl+a":
			a.mode = modeAbortReason
			a.input.Placeholder = "reason for aborting"
			a.input.SetValue("")
			return a, nil
		case "ctrl+n":
			a.advance()
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit turns the current input into a single-patch batch and applies it.
func (a *App) submit() (tea.Model, tea.Cmd) {
	if len(a.issues) == 0 {
		a.quitting = true
		return a, tea.Quit
	}
	issue := a.issues[a.current]
	text := strings.TrimSpace(a.input.Value())

	var p patch.Patch
	switch a.mode {
	case modeSkipReason:
		if text == "" {
			a.errMsg = "a skip needs a reason"
			return a, nil
		}
		p = patch.Skip(issue.Ref, text)
	case modeAbortReason:
		if text == "" {
			a.errMsg = "an abort needs a reason"
			return a, nil
		}
		p = patch.Abort(issue.Ref, text)
	default:
		if text == "" {
			a.errMsg = "type an answer, or ctrl+k to skip"
			return a, nil
		}
		p = patch.Patch{FieldID: issue.Ref, Op: patch.OpSetValue, Literal: text}
	}

	res := patch.Apply(a.doc, []patch.Patch{p})
	if res.Status == patch.StatusRejected {
		a.errMsg = problemText(res.Problems)
		a.logbook.Warn("fill: %s rejected: %s", issue.Ref, a.errMsg)
		return a, nil
	}
	a.doc = res.Document
	a.errMsg = ""
	a.statusMsg = fmt.Sprintf("%s %s", issue.Ref, res.Status)
	if res.Status == patch.StatusPartial {
		a.statusMsg = fmt.Sprintf("%s recorded, but the value still has problems", issue.Ref)
	}
	a.logbook.Info("fill: %s %s", issue.Ref, res.Status)

	a.resetInput()
	a.refresh()
	if len(a.issues) == 0 {
		a.quitting = true
		return a, tea.Quit
	}
	return a, nil
}

// advance moves to the next ready issue without patching.
func (a *App) advance() {
	if len(a.issues) == 0 {
		return
	}
	a.current = (a.current + 1) % len(a.issues)
	a.resetInput()
	a.errMsg = ""
}

func (a *App) resetInput() {
	a.mode = modeAnswer
	a.input.Placeholder = "answer"
	a.input.SetValue("")
}

// refresh re-inspects the document and reloads the ready issue list.
func (a *App) refresh() {
	rep := inspect.Inspect(a.doc, inspect.Options{
		TargetRoles: []form.Role{a.role},
		ReadyOnly:   true,
	})
	a.issues = rep.Issues
	a.state = rep.State
	a.answered = rep.Progress.Answered
	a.fields = rep.Structure.Fields
	if a.current >= len(a.issues) {
		a.current = 0
	}
}

// View renders the current state.
func (a *App) View() string {
	var b strings.Builder
	header := fmt.Sprintf("formloom fill · role %s · %s · %d/%d answered",
		a.role, a.state, a.answered, a.fields)
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	if len(a.issues) == 0 {
		b.WriteString(okStyle.Render("Nothing left that is ready for this role."))
		b.WriteString("\n")
		return b.String()
	}
	if a.quitting {
		return b.String()
	}

	issue := a.issues[a.current]
	f, _, ok := a.doc.Schema.Field(issue.Ref)
	if !ok {
		return errStyle.Render(fmt.Sprintf("unknown field %s", issue.Ref))
	}

	label := f.Label
	if label == "" {
		label = f.ID
	}
	mark := ""
	if f.Required {
		mark = " " + requiredMark
	}
	fmt.Fprintf(&b, "%s%s  %s\n", promptStyle.Render(label), mark,
		hintStyle.Render(fmt.Sprintf("(%s, %d of %d)", f.Kind, a.current+1, len(a.issues))))
	if prompt := strings.TrimSpace(f.Prompt); prompt != "" {
		fmt.Fprintf(&b, "%s\n", prompt)
	}
	if f.Kind.HasOptions() {
		for _, o := range f.Options {
			title := o.Label
			if title == "" {
				title = o.ID
			}
			fmt.Fprintf(&b, "  %s  %s\n", o.ID, hintStyle.Render(title))
		}
	}
	b.WriteString("\n")
	b.WriteString(a.input.View())
	b.WriteString("\n\n")

	if a.errMsg != "" {
		b.WriteString(errStyle.Render(a.errMsg))
		b.WriteString("\n")
	} else if a.statusMsg != "" {
		b.WriteString(okStyle.Render(a.statusMsg))
		b.WriteString("\n")
	}
	b.WriteString(hintStyle.Render("enter submit · ctrl+k skip · ctrl+a abort · ctrl+n next · esc quit"))
	b.WriteString("\n")
	return b.String()
}

// Run drives the fill app to completion and returns the patched document.
func Run(doc *form.Document, role form.Role, lb *logbook.Logbook) (*form.Document, error) {
	app := NewApp(doc, role, lb)
	final, err := tea.NewProgram(app).Run()
	if err != nil {
		return doc, fmt.Errorf("tui: %w", err)
	}
	out, ok := final.(*App)
	if !ok {
		return doc, fmt.Errorf("tui: unexpected final model %T", final)
	}
	return out.Document(), nil
}

func problemText(problems []patch.Problem) string {
	parts := make([]string, 0, len(problems))
	for _, p := range problems {
		parts = append(parts, p.Message)
	}
	return strings.Join(parts, "; ")
}
