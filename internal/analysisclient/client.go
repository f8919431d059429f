// Package analysisclient submits recordings to the remote transcription and
// analysis endpoint.
package analysisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"callcenter-backend/internal/calls"
	"callcenter-backend/internal/reconciler"
	"callcenter-backend/internal/shared/telemetry"
)

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

// Client is a reconciler.Submitter over HTTP. The analysis can run for
// minutes, so the HTTP client must not set a Timeout; callers bound the
// request with ctx instead.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

func New(endpoint string) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("analysis endpoint is required")
	}
	return &Client{Endpoint: endpoint, HTTP: &http.Client{}}, nil
}

type response struct {
	DetectedLanguage string               `json:"detected_language"`
	Transcript       string               `json:"transcript_with_speakers"`
	RawSegments      []reconciler.Segment `json:"raw_segments"`
	CallAnalysis     json.RawMessage      `json:"call_analysis"`
	Saved            bool                 `json:"saved_to_supabase"`
	CallID           json.RawMessage      `json:"supabase_call_id"`
	SaveError        string               `json:"supabase_error"`
}

// Submit streams the job as multipart/form-data and decodes the direct
// response. Transport errors are returned unwrapped so the reconciler can
// classify them. A non-2xx status, an unreadable 2xx body or a recording
// that cannot be read is a *reconciler.FatalError.
func (c *Client) Submit(ctx context.Context, job reconciler.Job) (*reconciler.Result, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		if err := writeForm(form, job); err != nil {
			pw.CloseWithError(&formError{err: err})
			return
		}
		pw.Close()
	}()

	defer pr.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, pr)
	if err != nil {
		return nil, &reconciler.FatalError{Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	telemetry.Info("analysis.submit", map[string]any{
		"request_id":   job.RequestID,
		"file_name":    job.FileName,
		"personnel_id": job.PersonnelID,
	})
	resp, err := c.httpClient().Do(req)
	if err != nil {
		// The body failed locally, so the request never reached the endpoint.
		var ferr *formError
		if errors.As(err, &ferr) {
			return nil, &reconciler.FatalError{Err: ferr.err}
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &reconciler.FatalError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &reconciler.FatalError{Err: fmt.Errorf("decode analysis response: %w", err)}
	}
	return toResult(job.RequestID, parsed), nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

// formError marks a failure building the request body, such as an
// unreadable recording.
type formError struct{ err error }

func (e *formError) Error() string { return e.err.Error() }
func (e *formError) Unwrap() error { return e.err }

func writeForm(form *multipart.Writer, job reconciler.Job) error {
	part, err := form.CreateFormFile("audio_file", job.FileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, job.Audio); err != nil {
		return fmt.Errorf("copy audio: %w", err)
	}
	if err := form.WriteField("request_id", job.RequestID); err != nil {
		return err
	}
	// The endpoint only saves a record when it knows who made the call.
	if job.PersonnelID != "" {
		if err := form.WriteField("personnel_id", job.PersonnelID); err != nil {
			return err
		}
		if err := form.WriteField("gorusme_adi", callName(job)); err != nil {
			return err
		}
	}
	return form.Close()
}

func callName(job reconciler.Job) string {
	if name := strings.TrimSpace(job.CallName); name != "" {
		return name
	}
	return calls.DefaultName
}

func toResult(requestID string, r response) *reconciler.Result {
	res := &reconciler.Result{
		RequestID:  requestID,
		CallID:     callID(r.CallID),
		Language:   r.DetectedLanguage,
		Transcript: r.Transcript,
		Segments:   r.RawSegments,
		Saved:      r.Saved,
		SaveError:  r.SaveError,
	}
	if res.Language == "" {
		res.Language = "unknown"
	}
	analysis, err := calls.DecodeAnalysis(r.CallAnalysis)
	if err != nil {
		telemetry.Warn("analysis.decode_failed", map[string]any{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
	res.Analysis = analysis
	return res
}

// callID accepts the saved record id as either a JSON string or number.
func callID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
