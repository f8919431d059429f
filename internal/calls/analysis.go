package calls

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// maxAnalysisNesting bounds how many times a payload may be JSON-string wrapped.
const maxAnalysisNesting = 3

// Analysis is the structured result produced by the remote analysis job.
// Field names follow the payload the job writes.
type Analysis struct {
	CallSummary          string           `json:"call_summary"`
	CallDurationAnalysis string           `json:"call_duration_analysis,omitempty"`
	ResolutionStatus     string           `json:"resolution_status"`
	CallerAnalysis       CallerAnalysis   `json:"caller_analysis"`
	AgentPerformance     AgentPerformance `json:"agent_performance"`
	Recommendations      []string         `json:"recommendations"`
}

type CallerAnalysis struct {
	Sentiment         string   `json:"sentiment"`
	Tone              string   `json:"tone"`
	MainIssue         string   `json:"main_issue"`
	SatisfactionLevel string   `json:"satisfaction_level"`
	KeyConcerns       []string `json:"key_concerns"`
}

type AgentPerformance struct {
	Professionalism  float64  `json:"professionalism_score"`
	Empathy          float64  `json:"empathy_score"`
	ProblemSolving   float64  `json:"problem_solving_score"`
	Communication    float64  `json:"communication_score"`
	OverallScore     *float64 `json:"overall_score"`
	Strengths        []string `json:"strengths"`
	ImprovementAreas []string `json:"improvement_areas"`
	KeyActions       []string `json:"key_actions"`
}

// DecodeAnalysis normalises a stored analysis payload. The payload may be a
// JSON object, a JSON string holding the object (possibly more than once),
// or empty. An empty payload yields (nil, nil).
func DecodeAnalysis(raw []byte) (*Analysis, error) {
	data := bytes.TrimSpace(raw)
	for depth := 0; ; depth++ {
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return nil, nil
		}
		switch data[0] {
		case '{':
			var a Analysis
			if err := json.Unmarshal(data, &a); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
			}
			return &a, nil
		case '"':
			if depth >= maxAnalysisNesting {
				return nil, fmt.Errorf("%w: nested more than %d levels", ErrInvalidAnalysis, maxAnalysisNesting)
			}
			var inner string
			if err := json.Unmarshal(data, &inner); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
			}
			data = bytes.TrimSpace([]byte(inner))
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidAnalysis, data[0])
		}
	}
}

// EncodeAnalysis returns the canonical object encoding, or nil for no analysis.
func EncodeAnalysis(a *Analysis) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// StatusFromResolution maps the analysis resolution status onto a call status.
// Both the Turkish labels the analysis job emits and English equivalents are accepted.
func StatusFromResolution(resolution string) Status {
	norm := strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(resolution, "_", " "))), " ")
	switch norm {
	case "çözüldü", "resolved", "solved":
		return StatusCompleted
	case "kısmen çözüldü", "partially resolved", "partially solved":
		return StatusInProgress
	default:
		return StatusCancelled
	}
}

// ApplyTo copies the derived summary fields onto c.
func (a *Analysis) ApplyTo(c *Call) {
	if a == nil || c == nil {
		return
	}
	c.Analysis = a
	c.Status = StatusFromResolution(a.ResolutionStatus)
	c.Score = a.AgentPerformance.OverallScore
	c.CustomerSatisfaction = a.CallerAnalysis.SatisfactionLevel
	c.Summary = a.CallSummary
	c.Recommendations = strings.Join(a.Recommendations, "\n")
}
