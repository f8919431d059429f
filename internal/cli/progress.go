package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"callcenter-backend/internal/reconciler"
)

var (
	accentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50C878"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5C07B"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
)

type eventMsg reconciler.Event

type outcomeMsg reconciler.Outcome

// progressModel is the bubbletea model behind ProgressView.
type progressModel struct {
	label     string
	spinner   spinner.Model
	event     reconciler.Event
	outcome   *reconciler.Outcome
	cancel    context.CancelFunc
	canceling bool
	started   time.Time
	now       func() time.Time
}

func newProgressModel(label string) *progressModel {
	return &progressModel{
		label:   label,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
		event:   reconciler.Event{State: reconciler.StateCreated},
		now:     time.Now,
	}
}

func (m *progressModel) Init() tea.Cmd {
	m.started = m.now()
	return m.spinner.Tick
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if m.cancel != nil && !m.canceling {
				m.canceling = true
				m.cancel()
			}
		}
		return m, nil

	case eventMsg:
		m.event = reconciler.Event(msg)
		return m, nil

	case outcomeMsg:
		out := reconciler.Outcome(msg)
		m.outcome = &out
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if m.outcome != nil {
		return ""
	}
	elapsed := m.event.Elapsed
	if !m.started.IsZero() {
		elapsed = m.now().Sub(m.started)
	}

	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(accentStyle.Render(m.label))
	b.WriteString("  ")
	b.WriteString(describeEvent(m.event))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %s", elapsed.Round(time.Second))))
	if m.canceling {
		b.WriteString(warnStyle.Render("  canceling..."))
	} else {
		b.WriteString(mutedStyle.Render("  (q to cancel)"))
	}
	b.WriteString("\n")
	return b.String()
}

func describeEvent(ev reconciler.Event) string {
	switch ev.State {
	case reconciler.StateCreated:
		return "preparing"
	case reconciler.StateSubmitted:
		return "uploading and analyzing"
	case reconciler.StatePolling:
		if ev.Attempt == 0 {
			return "connection lost, checking for the result"
		}
		return fmt.Sprintf("checking for the result (attempt %d/%d)", ev.Attempt, ev.MaxAttempts)
	}
	return string(ev.State)
}

// ProgressView shows a spinner with the run state and elapsed time while a
// reconciler run is in flight, then prints the outcome.
type ProgressView struct {
	out     io.Writer
	model   *progressModel
	program *tea.Program
}

// NewProgressView builds a view that renders to out. Extra program options
// are passed to bubbletea, e.g. tea.WithInput for tests.
func NewProgressView(label string, out io.Writer, opts ...tea.ProgramOption) *ProgressView {
	model := newProgressModel(label)
	opts = append([]tea.ProgramOption{tea.WithOutput(out)}, opts...)
	return &ProgressView{
		out:     out,
		model:   model,
		program: tea.NewProgram(model, opts...),
	}
}

func (v *ProgressView) Progress(ev reconciler.Event) {
	v.program.Send(eventMsg(ev))
}

func (v *ProgressView) Present(out reconciler.Outcome) {
	v.program.Send(outcomeMsg(out))
}

// Follow runs fn in the background and drives the view until fn presents its
// outcome. Quitting the view cancels the context passed to fn.
func (v *ProgressView) Follow(ctx context.Context, fn func(ctx context.Context) (reconciler.Outcome, error)) (reconciler.Outcome, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	v.model.cancel = cancel

	type result struct {
		out reconciler.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := fn(runCtx)
		done <- result{out: out, err: err}
	}()

	if _, err := v.program.Run(); err != nil {
		cancel()
		res := <-done
		if res.err == nil {
			res.err = err
		}
		return res.out, res.err
	}
	res := <-done
	fmt.Fprint(v.out, RenderOutcome(res.out))
	return res.out, res.err
}

// PlainPresenter writes one line per state change, for non-interactive
// output.
type PlainPresenter struct {
	W io.Writer
}

func (p PlainPresenter) Progress(ev reconciler.Event) {
	fmt.Fprintf(p.W, "[%s] %s (%s)\n", ev.State, describeEvent(ev), ev.Elapsed.Round(time.Second))
}

func (p PlainPresenter) Present(out reconciler.Outcome) {
	fmt.Fprint(p.W, RenderOutcome(out))
}

// RenderOutcome formats a finished run for the terminal.
func RenderOutcome(out reconciler.Outcome) string {
	var b strings.Builder
	elapsed := out.Elapsed.Round(time.Second)

	switch out.State {
	case reconciler.StateCompleted:
		via := "direct response"
		if out.Source == reconciler.SourcePolled {
			via = fmt.Sprintf("recovered after %d checks", out.Attempts)
		}
		fmt.Fprintf(&b, "%s %s\n", successStyle.Render("Analysis complete"), mutedStyle.Render(fmt.Sprintf("(%s, %s)", via, elapsed)))
		renderResult(&b, out.Result)
	case reconciler.StateExhausted:
		fmt.Fprintf(&b, "%s %s\n", warnStyle.Render("Still processing"), mutedStyle.Render(fmt.Sprintf("(%d checks, %s)", out.Attempts, elapsed)))
		fmt.Fprintf(&b, "%s\n", out.Notice)
	case reconciler.StateCanceled:
		fmt.Fprintf(&b, "%s %s\n", warnStyle.Render("Canceled"), mutedStyle.Render(fmt.Sprintf("(%s)", elapsed)))
	default:
		msg := "unknown error"
		if out.Err != nil {
			msg = out.Err.Error()
		}
		fmt.Fprintf(&b, "%s %s\n", errorStyle.Render("Analysis failed:"), msg)
	}
	fmt.Fprintf(&b, "%s\n", mutedStyle.Render("request id: "+out.RequestID))
	return b.String()
}

func renderResult(b *strings.Builder, res *reconciler.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(b, "Language: %s\n", res.Language)
	if res.CallID != "" {
		fmt.Fprintf(b, "Call: %s\n", res.CallID)
	} else if !res.Saved {
		msg := "not saved"
		if res.SaveError != "" {
			msg += ": " + res.SaveError
		}
		fmt.Fprintf(b, "%s\n", warnStyle.Render(msg))
	}

	if a := res.Analysis; a != nil {
		fmt.Fprintf(b, "\n%s\n%s\n", accentStyle.Render("Summary"), a.CallSummary)
		if a.ResolutionStatus != "" {
			fmt.Fprintf(b, "Resolution: %s\n", a.ResolutionStatus)
		}
		if score := a.AgentPerformance.OverallScore; score != nil {
			fmt.Fprintf(b, "Agent score: %.1f\n", *score)
		}
		if len(a.Recommendations) > 0 {
			fmt.Fprintf(b, "\n%s\n", accentStyle.Render("Recommendations"))
			for _, r := range a.Recommendations {
				fmt.Fprintf(b, "  - %s\n", r)
			}
		}
	}

	if len(res.Segments) > 0 {
		fmt.Fprintf(b, "\n%s\n", accentStyle.Render("Transcript"))
		for _, s := range res.Segments {
			speaker := s.Speaker
			if speaker == "" {
				speaker = "?"
			}
			fmt.Fprintf(b, "  [%6.1fs] %s: %s\n", s.Start, speaker, strings.TrimSpace(s.Text))
		}
	} else if res.Transcript != "" {
		fmt.Fprintf(b, "\n%s\n%s\n", accentStyle.Render("Transcript"), res.Transcript)
	}
}
