package calls

import "time"

// Status is the outcome of a call derived from its analysis.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusInProgress Status = "in_progress"
	StatusCancelled  Status = "cancelled"
)

const (
	DefaultName     = "New Call"
	DefaultLanguage = "en"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusInProgress, StatusCancelled:
		return true
	}
	return false
}

// Call is a persisted call record. At most one exists per RequestID.
type Call struct {
	ID                   string    `json:"id"`
	RequestID            string    `json:"requestId,omitempty"`
	PersonnelID          string    `json:"personnelId,omitempty"`
	Name                 string    `json:"name"`
	CalledAt             time.Time `json:"calledAt"`
	DurationSeconds      int       `json:"durationSeconds"`
	AudioURL             string    `json:"audioUrl,omitempty"`
	Transcript           string    `json:"transcript,omitempty"`
	Language             string    `json:"language"`
	Status               Status    `json:"status"`
	Score                *float64  `json:"score,omitempty"`
	CustomerSatisfaction string    `json:"customerSatisfaction,omitempty"`
	Summary              string    `json:"aiSummary,omitempty"`
	Recommendations      string    `json:"aiRecommendations,omitempty"`
	Analysis             *Analysis `json:"callAnalysis,omitempty"`
	AnalysisError        string    `json:"analysisError,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Stats aggregates call counts for a dashboard.
type Stats struct {
	TotalCalls      int     `json:"totalCalls"`
	CompletedCalls  int     `json:"completedCalls"`
	AvgScore        float64 `json:"avgScore"`
	TodayCalls      int     `json:"todayCalls"`
	ActivePersonnel *int    `json:"activePersonnel,omitempty"`
}

// Viewer is who is asking; non-managers only see their own calls.
// Calls with no owner are visible to managers only.
type Viewer struct {
	PersonnelID string
	Manager     bool
}

func (v Viewer) canSee(c Call) bool {
	if v.Manager {
		return true
	}
	return v.PersonnelID != "" && c.PersonnelID == v.PersonnelID
}
