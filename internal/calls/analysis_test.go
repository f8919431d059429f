package calls

import (
	"encoding/json"
	"errors"
	"testing"
)

const sampleAnalysis = `{
  "call_summary": "Customer could not log in.",
  "resolution_status": "Çözüldü",
  "caller_analysis": {"sentiment": "negative", "tone": "frustrated", "main_issue": "login", "satisfaction_level": "medium", "key_concerns": ["access"]},
  "agent_performance": {"professionalism_score": 9, "empathy_score": 8, "problem_solving_score": 7, "communication_score": 8, "overall_score": 8.5, "strengths": ["calm"], "improvement_areas": ["speed"], "key_actions": ["reset password"]},
  "recommendations": ["Follow up tomorrow", "Offer MFA"]
}`

func wrapJSONString(t *testing.T, raw string, times int) []byte {
	t.Helper()
	out := []byte(raw)
	for i := 0; i < times; i++ {
		b, err := json.Marshal(string(out))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		out = b
	}
	return out
}

func TestDecodeAnalysisReadsDimensionScores(t *testing.T) {
	a, err := DecodeAnalysis([]byte(sampleAnalysis))
	if err != nil {
		t.Fatalf("DecodeAnalysis: %v", err)
	}
	p := a.AgentPerformance
	if p.Professionalism != 9 || p.Empathy != 8 || p.ProblemSolving != 7 || p.Communication != 8 {
		t.Fatalf("unexpected dimension scores %+v", p)
	}
	if p.OverallScore == nil || *p.OverallScore != 8.5 {
		t.Fatalf("unexpected overall score %v", p.OverallScore)
	}

	out, err := EncodeAnalysis(a)
	if err != nil {
		t.Fatalf("EncodeAnalysis: %v", err)
	}
	var stored struct {
		AgentPerformance map[string]any `json:"agent_performance"`
	}
	if err := json.Unmarshal(out, &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"professionalism_score", "empathy_score", "problem_solving_score", "communication_score"} {
		if _, ok := stored.AgentPerformance[key]; !ok {
			t.Fatalf("expected %s in stored payload %s", key, out)
		}
	}
}

func TestDecodeAnalysisAcceptsObjectAndEncodedString(t *testing.T) {
	for wraps := 0; wraps <= maxAnalysisNesting; wraps++ {
		a, err := DecodeAnalysis(wrapJSONString(t, sampleAnalysis, wraps))
		if err != nil {
			t.Fatalf("wraps=%d: DecodeAnalysis error: %v", wraps, err)
		}
		if a == nil {
			t.Fatalf("wraps=%d: expected analysis", wraps)
		}
		if a.CallSummary != "Customer could not log in." {
			t.Fatalf("wraps=%d: unexpected summary %q", wraps, a.CallSummary)
		}
		if a.AgentPerformance.OverallScore == nil || *a.AgentPerformance.OverallScore != 8.5 {
			t.Fatalf("wraps=%d: unexpected overall score %v", wraps, a.AgentPerformance.OverallScore)
		}
	}
}

func TestDecodeAnalysisRejectsDeepNesting(t *testing.T) {
	_, err := DecodeAnalysis(wrapJSONString(t, sampleAnalysis, maxAnalysisNesting+1))
	if !errors.Is(err, ErrInvalidAnalysis) {
		t.Fatalf("expected ErrInvalidAnalysis, got %v", err)
	}
}

func TestDecodeAnalysisEmpty(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", `""`, `"null"`} {
		a, err := DecodeAnalysis([]byte(raw))
		if err != nil {
			t.Fatalf("%q: unexpected error %v", raw, err)
		}
		if a != nil {
			t.Fatalf("%q: expected nil analysis", raw)
		}
	}
}

func TestDecodeAnalysisInvalid(t *testing.T) {
	for _, raw := range []string{"not json", "[1,2]", `{"call_summary": 5}`, `"{broken"`} {
		if _, err := DecodeAnalysis([]byte(raw)); !errors.Is(err, ErrInvalidAnalysis) {
			t.Fatalf("%q: expected ErrInvalidAnalysis, got %v", raw, err)
		}
	}
}

func TestStatusFromResolution(t *testing.T) {
	cases := map[string]Status{
		"Çözüldü":            StatusCompleted,
		"resolved":           StatusCompleted,
		" Resolved ":         StatusCompleted,
		"Kısmen Çözüldü":     StatusInProgress,
		"partially_resolved": StatusInProgress,
		"Partially Resolved": StatusInProgress,
		"Çözülemedi":         StatusCancelled,
		"":                   StatusCancelled,
		"unknown":            StatusCancelled,
	}
	for in, want := range cases {
		if got := StatusFromResolution(in); got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}
}

func TestApplyToDerivesSummaryFields(t *testing.T) {
	a, err := DecodeAnalysis([]byte(sampleAnalysis))
	if err != nil {
		t.Fatalf("DecodeAnalysis: %v", err)
	}
	var c Call
	a.ApplyTo(&c)

	if c.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", c.Status)
	}
	if c.Score == nil || *c.Score != 8.5 {
		t.Fatalf("unexpected score %v", c.Score)
	}
	if c.CustomerSatisfaction != "medium" {
		t.Fatalf("unexpected satisfaction %q", c.CustomerSatisfaction)
	}
	if c.Recommendations != "Follow up tomorrow\nOffer MFA" {
		t.Fatalf("unexpected recommendations %q", c.Recommendations)
	}
	if c.Analysis != a {
		t.Fatalf("expected analysis to be attached")
	}
}

func TestEncodeAnalysisRoundTripsThroughDecode(t *testing.T) {
	a, err := DecodeAnalysis(wrapJSONString(t, sampleAnalysis, 2))
	if err != nil {
		t.Fatalf("DecodeAnalysis: %v", err)
	}
	raw, err := EncodeAnalysis(a)
	if err != nil {
		t.Fatalf("EncodeAnalysis: %v", err)
	}
	if raw[0] != '{' {
		t.Fatalf("expected canonical object encoding, got %s", raw)
	}
	if empty, _ := EncodeAnalysis(nil); empty != nil {
		t.Fatalf("expected nil encoding for nil analysis")
	}
}
