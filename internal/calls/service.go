package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"callcenter-backend/internal/shared/cache"
	"callcenter-backend/internal/shared/metrics"
	"callcenter-backend/internal/shared/telemetry"
)

const (
	statsAdminKey       = "stats:admin"
	statsPersonnelKey   = "stats:personnel:"
	defaultStatsTTL     = 30 * time.Second
	maxRequestIDLength  = 128
	maxCallNameLength   = 200
	maxTranscriptLength = 1 << 20
)

// ActiveCounter reports how many personnel are active. Used for admin stats.
type ActiveCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// Service contains business logic for call records.
type Service struct {
	Repo     Repo
	Cache    cache.Cache
	StatsTTL time.Duration
	Active   ActiveCounter
	// Location is the zone "today" is counted in. Nil means time.Local.
	Location *time.Location

	now func() time.Time
}

// NewService constructs a Service. c and active may be nil.
func NewService(repo Repo, c cache.Cache, statsTTL time.Duration, active ActiveCounter) *Service {
	if statsTTL <= 0 {
		statsTTL = defaultStatsTTL
	}
	return &Service{Repo: repo, Cache: c, StatsTTL: statsTTL, Active: active, now: time.Now}
}

// IngestInput is a completed analysis written back by the remote job.
type IngestInput struct {
	RequestID       string          `json:"requestId"`
	PersonnelID     string          `json:"personnelId"`
	Name            string          `json:"name"`
	CalledAt        time.Time       `json:"calledAt"`
	DurationSeconds int             `json:"durationSeconds"`
	Language        string          `json:"language"`
	Transcript      string          `json:"transcript"`
	AudioURL        string          `json:"audioUrl"`
	Analysis        json.RawMessage `json:"callAnalysis"`
	// Source labels where the record came from (http, queue, lambda).
	Source string `json:"-"`
}

// Ingest persists a completed analysis. It is idempotent per request id: when
// a record already exists it is returned with created=false.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (Call, bool, error) {
	in.RequestID = strings.TrimSpace(in.RequestID)
	if in.RequestID == "" {
		return Call{}, false, fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}
	if len(in.RequestID) > maxRequestIDLength {
		return Call{}, false, fmt.Errorf("%w: request id too long", ErrInvalidInput)
	}
	if in.DurationSeconds < 0 {
		return Call{}, false, fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
	}
	if len(in.Transcript) > maxTranscriptLength {
		return Call{}, false, fmt.Errorf("%w: transcript too long", ErrInvalidInput)
	}

	analysis, err := DecodeAnalysis(in.Analysis)
	if err != nil {
		return Call{}, false, err
	}

	call := Call{
		ID:              uuid.NewString(),
		RequestID:       in.RequestID,
		PersonnelID:     strings.TrimSpace(in.PersonnelID),
		Name:            strings.TrimSpace(in.Name),
		CalledAt:        in.CalledAt.UTC(),
		DurationSeconds: in.DurationSeconds,
		AudioURL:        strings.TrimSpace(in.AudioURL),
		Transcript:      in.Transcript,
		Language:        strings.TrimSpace(in.Language),
		Status:          StatusCancelled,
	}
	if call.Name == "" {
		call.Name = DefaultName
	}
	if len(call.Name) > maxCallNameLength {
		call.Name = call.Name[:maxCallNameLength]
	}
	if call.Language == "" {
		call.Language = DefaultLanguage
	}
	if call.CalledAt.IsZero() {
		call.CalledAt = s.clock().UTC()
	}
	analysis.ApplyTo(&call)

	created, err := s.Repo.Create(ctx, call)
	if err != nil {
		if errors.Is(err, ErrDuplicateRequestID) {
			existing, getErr := s.Repo.GetByRequestID(ctx, in.RequestID)
			if getErr != nil {
				return Call{}, false, getErr
			}
			telemetry.Info("calls.ingest.duplicate", map[string]any{
				"analysis_request_id": in.RequestID,
				"call_id":             existing.ID,
				"source":              in.Source,
			})
			return existing, false, nil
		}
		return Call{}, false, err
	}

	metrics.IncCallsCreated(in.Source)
	s.invalidateStats(ctx, created.PersonnelID)
	telemetry.Info("calls.ingest.created", map[string]any{
		"analysis_request_id": created.RequestID,
		"call_id":             created.ID,
		"personnel_id":        created.PersonnelID,
		"status":              string(created.Status),
		"source":              in.Source,
	})
	return created, true, nil
}

// Get returns a call visible to v.
func (s *Service) Get(ctx context.Context, v Viewer, id string) (Call, error) {
	if strings.TrimSpace(id) == "" {
		return Call{}, ErrInvalidInput
	}
	c, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Call{}, err
	}
	if !v.canSee(c) {
		return Call{}, ErrNotFound
	}
	return c, nil
}

// FindByRequestID is the lookup the result poller issues. Records owned by
// someone else are reported as not found.
func (s *Service) FindByRequestID(ctx context.Context, v Viewer, requestID string) (Call, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return Call{}, ErrInvalidInput
	}
	c, err := s.Repo.GetByRequestID(ctx, requestID)
	if err == nil && !v.canSee(c) {
		err = ErrNotFound
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.ObserveRequestLookup(false)
		}
		return Call{}, err
	}
	metrics.ObserveRequestLookup(true)
	return c, nil
}

// List returns calls for v. Non-managers are always scoped to their own calls.
func (s *Service) List(ctx context.Context, v Viewer, f ListFilter) ([]Call, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	if !v.Manager {
		if v.PersonnelID == "" {
			return []Call{}, nil
		}
		f.PersonnelID = v.PersonnelID
	}
	return s.Repo.List(ctx, f)
}

// Recent returns the latest calls visible to v.
func (s *Service) Recent(ctx context.Context, v Viewer) ([]Call, error) {
	return s.List(ctx, v, ListFilter{Limit: RecentLimit})
}

// Delete removes a call. Only managers may delete.
func (s *Service) Delete(ctx context.Context, v Viewer, id string) error {
	if !v.Manager {
		return ErrForbidden
	}
	c, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx, c.PersonnelID)
	return nil
}

// Stats returns admin stats for managers and personnel stats otherwise.
func (s *Service) Stats(ctx context.Context, v Viewer) (Stats, error) {
	if v.Manager {
		return s.AdminStats(ctx)
	}
	return s.PersonnelStats(ctx, v.PersonnelID)
}

// PersonnelStats aggregates one person's calls.
func (s *Service) PersonnelStats(ctx context.Context, personnelID string) (Stats, error) {
	if personnelID == "" {
		return Stats{}, nil
	}
	return s.cachedStats(ctx, statsPersonnelKey+personnelID, func() (Stats, error) {
		return s.Repo.Stats(ctx, personnelID, s.dayStart())
	})
}

// AdminStats aggregates every call and adds the active personnel count.
func (s *Service) AdminStats(ctx context.Context) (Stats, error) {
	return s.cachedStats(ctx, statsAdminKey, func() (Stats, error) {
		st, err := s.Repo.Stats(ctx, "", s.dayStart())
		if err != nil {
			return Stats{}, err
		}
		active := 0
		if s.Active != nil {
			if active, err = s.Active.CountActive(ctx); err != nil {
				return Stats{}, err
			}
		}
		st.ActivePersonnel = &active
		return st, nil
	})
}

func (s *Service) cachedStats(ctx context.Context, key string, load func() (Stats, error)) (Stats, error) {
	var st Stats
	if err := cache.GetJSON(ctx, s.Cache, key, &st); err == nil {
		return st, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		telemetry.Warn("calls.stats.cache_read_failed", map[string]any{"key": key, "error": err})
	}

	st, err := load()
	if err != nil {
		return Stats{}, err
	}
	st.AvgScore = math.Round(st.AvgScore*10) / 10
	if err := cache.SetJSON(ctx, s.Cache, key, st, s.StatsTTL); err != nil {
		telemetry.Warn("calls.stats.cache_write_failed", map[string]any{"key": key, "error": err})
	}
	return st, nil
}

func (s *Service) invalidateStats(ctx context.Context, personnelID string) {
	if s.Cache == nil {
		return
	}
	keys := []string{statsAdminKey}
	if personnelID != "" {
		keys = append(keys, statsPersonnelKey+personnelID)
	}
	if err := s.Cache.Delete(ctx, keys...); err != nil {
		telemetry.Warn("calls.stats.cache_invalidate_failed", map[string]any{"error": err})
	}
}

func (s *Service) dayStart() time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	now := s.clock().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
