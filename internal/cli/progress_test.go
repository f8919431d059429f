package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callcenter-backend/internal/calls"
	"callcenter-backend/internal/reconciler"
)

func completedOutcome() reconciler.Outcome {
	score := 8.5
	return reconciler.Outcome{
		RequestID: "req-1",
		State:     reconciler.StateCompleted,
		Source:    reconciler.SourcePolled,
		Attempts:  3,
		Elapsed:   42 * time.Second,
		Result: &reconciler.Result{
			RequestID:  "req-1",
			CallID:     "call-1",
			Language:   "tr",
			Transcript: "merhaba",
			Saved:      true,
			Analysis: &calls.Analysis{
				CallSummary:      "Customer could not log in.",
				ResolutionStatus: "Çözüldü",
				AgentPerformance: calls.AgentPerformance{OverallScore: &score},
				Recommendations:  []string{"Follow up tomorrow"},
			},
		},
	}
}

func TestRenderOutcomeCompleted(t *testing.T) {
	text := RenderOutcome(completedOutcome())
	assert.Contains(t, text, "Analysis complete")
	assert.Contains(t, text, "recovered after 3 checks")
	assert.Contains(t, text, "Customer could not log in.")
	assert.Contains(t, text, "Agent score: 8.5")
	assert.Contains(t, text, "Follow up tomorrow")
	assert.Contains(t, text, "merhaba")
	assert.Contains(t, text, "request id: req-1")
}

func TestRenderOutcomeExhaustedAndFailed(t *testing.T) {
	exhausted := RenderOutcome(reconciler.Outcome{
		RequestID: "req-2",
		State:     reconciler.StateExhausted,
		Attempts:  30,
		Notice:    reconciler.ExhaustedNotice,
	})
	assert.Contains(t, exhausted, "Still processing")
	assert.Contains(t, exhausted, reconciler.ExhaustedNotice)

	failed := RenderOutcome(reconciler.Outcome{
		RequestID: "req-3",
		State:     reconciler.StateFailed,
		Err:       errors.New("analysis endpoint returned 500"),
	})
	assert.Contains(t, failed, "Analysis failed:")
	assert.Contains(t, failed, "returned 500")
}

func TestRenderOutcomeUnsavedDirectResult(t *testing.T) {
	text := RenderOutcome(reconciler.Outcome{
		RequestID: "req-4",
		State:     reconciler.StateCompleted,
		Source:    reconciler.SourceDirect,
		Result: &reconciler.Result{
			Language:  "en",
			SaveError: "db unavailable",
			Segments:  []reconciler.Segment{{Start: 1.5, End: 3, Text: " hello ", Speaker: "SPEAKER_00"}},
		},
	})
	assert.Contains(t, text, "direct response")
	assert.Contains(t, text, "not saved: db unavailable")
	assert.Contains(t, text, "SPEAKER_00: hello")
}

func TestPlainPresenterWritesProgressAndOutcome(t *testing.T) {
	var buf bytes.Buffer
	p := PlainPresenter{W: &buf}
	p.Progress(reconciler.Event{RequestID: "req-1", State: reconciler.StatePolling, Attempt: 2, MaxAttempts: 30, Elapsed: 11 * time.Second})
	p.Present(completedOutcome())

	out := buf.String()
	assert.Contains(t, out, "[polling] checking for the result (attempt 2/30) (11s)")
	assert.Contains(t, out, "Analysis complete")
}

func TestProgressModelTracksEventsAndQuitsOnOutcome(t *testing.T) {
	m := newProgressModel("call.wav")
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	m.Init()

	_, cmd := m.Update(eventMsg(reconciler.Event{State: reconciler.StatePolling, Attempt: 4, MaxAttempts: 30}))
	assert.Nil(t, cmd)
	now = now.Add(75 * time.Second)
	view := m.View()
	assert.Contains(t, view, "call.wav")
	assert.Contains(t, view, "attempt 4/30")
	assert.Contains(t, view, "1m15s")

	_, cmd = m.Update(outcomeMsg(completedOutcome()))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestProgressModelCancelsOnce(t *testing.T) {
	m := newProgressModel("call.wav")
	canceled := 0
	m.cancel = func() { canceled++ }

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Equal(t, 1, canceled)
	assert.Contains(t, m.View(), "canceling")
}

func TestProgressViewFollowPrintsOutcome(t *testing.T) {
	var buf bytes.Buffer
	view := NewProgressView("call.wav", &buf, tea.WithInput(nil), tea.WithoutRenderer(), tea.WithoutSignalHandler())

	out, err := view.Follow(context.Background(), func(ctx context.Context) (reconciler.Outcome, error) {
		view.Progress(reconciler.Event{State: reconciler.StateSubmitted})
		o := completedOutcome()
		view.Present(o)
		return o, nil
	})
	require.NoError(t, err)
	assert.Equal(t, reconciler.StateCompleted, out.State)
	assert.Contains(t, buf.String(), "Analysis complete")
}
