// Package reconciler recovers the result of a long-running analysis job when
// the submitting request dies before the job does.
//
// A Reconciler submits the job once. A direct response is final. A transport
// failure that leaves the job's fate unknown switches to polling the call
// store by request id until the record appears or the attempt budget runs out.
package reconciler

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"

	"callcenter-backend/internal/calls"
)

// ErrInvalidJob is returned before submission when a job is incomplete.
var ErrInvalidJob = errors.New("invalid analysis job")

// Job is one analysis request. RequestID is generated by the client and is
// the key the remote job stores its result under.
type Job struct {
	RequestID   string
	FileName    string
	Audio       io.Reader
	PersonnelID string
	CallName    string
}

// NewRequestID returns a fresh request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

func (j Job) validate() error {
	switch {
	case strings.TrimSpace(j.RequestID) == "":
		return errors.Join(ErrInvalidJob, errors.New("request id is required"))
	case j.Audio == nil:
		return errors.Join(ErrInvalidJob, errors.New("audio is required"))
	case strings.TrimSpace(j.FileName) == "":
		return errors.Join(ErrInvalidJob, errors.New("file name is required"))
	}
	return nil
}

// Segment is one diarized span of the transcript.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// Result is what the presenter shows, whichever path produced it.
type Result struct {
	RequestID  string          `json:"requestId"`
	CallID     string          `json:"callId,omitempty"`
	Language   string          `json:"language"`
	Transcript string          `json:"transcript"`
	Segments   []Segment       `json:"segments,omitempty"`
	Analysis   *calls.Analysis `json:"analysis,omitempty"`
	// Record is set when the result was found in the store.
	Record *calls.Call `json:"record,omitempty"`
	// Saved reports whether the remote job persisted the record itself.
	Saved     bool   `json:"saved"`
	SaveError string `json:"saveError,omitempty"`
}

// ResultFromRecord builds a Result from a stored call. Segments are not
// stored, so a polled result has none.
func ResultFromRecord(c *calls.Call) *Result {
	if c == nil {
		return nil
	}
	lang := c.Language
	if lang == "" {
		lang = "unknown"
	}
	return &Result{
		RequestID:  c.RequestID,
		CallID:     c.ID,
		Language:   lang,
		Transcript: c.Transcript,
		Analysis:   c.Analysis,
		Record:     c,
		Saved:      true,
	}
}

// Submitter sends a job to the remote analysis endpoint and waits for its
// direct response. It must not impose its own timeout.
type Submitter interface {
	Submit(ctx context.Context, job Job) (*Result, error)
}

// Finder looks a call record up by request id. A miss is (nil, nil) or an
// error matching calls.ErrNotFound.
type Finder interface {
	FindByRequestID(ctx context.Context, requestID string) (*calls.Call, error)
}

// FinderFunc adapts a function to Finder.
type FinderFunc func(ctx context.Context, requestID string) (*calls.Call, error)

func (f FinderFunc) FindByRequestID(ctx context.Context, requestID string) (*calls.Call, error) {
	return f(ctx, requestID)
}

// RepoFinder reads the call store directly.
func RepoFinder(repo calls.Repo) Finder {
	return FinderFunc(func(ctx context.Context, requestID string) (*calls.Call, error) {
		c, err := repo.GetByRequestID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		return &c, nil
	})
}
