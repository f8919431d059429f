package calls

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"callcenter-backend/internal/shared/cache"
)

type fakeActive struct{ n int }

func (f fakeActive) CountActive(ctx context.Context) (int, error) { return f.n, nil }

func newTestService(now time.Time) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo, cache.NewMemory(time.Minute, time.Minute), time.Minute, fakeActive{n: 4})
	svc.now = func() time.Time { return now }
	svc.Location = time.UTC
	return svc, repo
}

func analysisWithScore(t *testing.T, resolution string, score float64) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(Analysis{
		CallSummary:      "summary",
		ResolutionStatus: resolution,
		AgentPerformance: AgentPerformance{OverallScore: &score},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestIngestCreatesOncePerRequestID(t *testing.T) {
	svc, _ := newTestService(time.Now())
	ctx := context.Background()
	in := IngestInput{
		RequestID:   "req-1",
		PersonnelID: "p-1",
		Transcript:  "hello",
		Analysis:    json.RawMessage(wrapJSONString(t, sampleAnalysis, 1)),
		Source:      "test",
	}

	first, created, err := svc.Ingest(ctx, in)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !created {
		t.Fatalf("expected first ingest to create")
	}
	if first.Name != DefaultName || first.Language != DefaultLanguage {
		t.Fatalf("expected defaults, got name=%q language=%q", first.Name, first.Language)
	}
	if first.Status != StatusCompleted {
		t.Fatalf("expected completed status, got %s", first.Status)
	}

	in.Transcript = "second write"
	second, created, err := svc.Ingest(ctx, in)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if created {
		t.Fatalf("expected duplicate ingest not to create")
	}
	if second.ID != first.ID || second.Transcript != "hello" {
		t.Fatalf("expected existing record, got %+v", second)
	}
}

func TestIngestValidation(t *testing.T) {
	svc, _ := newTestService(time.Now())
	ctx := context.Background()

	if _, _, err := svc.Ingest(ctx, IngestInput{RequestID: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := svc.Ingest(ctx, IngestInput{RequestID: "r", DurationSeconds: -1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative duration, got %v", err)
	}
	if _, _, err := svc.Ingest(ctx, IngestInput{RequestID: "r", Analysis: json.RawMessage(`[1]`)}); !errors.Is(err, ErrInvalidAnalysis) {
		t.Fatalf("expected ErrInvalidAnalysis, got %v", err)
	}
}

func TestFindByRequestIDHidesOtherPersonnel(t *testing.T) {
	svc, _ := newTestService(time.Now())
	ctx := context.Background()
	if _, _, err := svc.Ingest(ctx, IngestInput{RequestID: "req-1", PersonnelID: "p-1"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if _, err := svc.FindByRequestID(ctx, Viewer{PersonnelID: "p-2"}, "req-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other personnel, got %v", err)
	}
	if _, err := svc.FindByRequestID(ctx, Viewer{PersonnelID: "p-1"}, "req-1"); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	if _, err := svc.FindByRequestID(ctx, Viewer{Manager: true}, "req-1"); err != nil {
		t.Fatalf("manager lookup: %v", err)
	}
	if _, err := svc.FindByRequestID(ctx, Viewer{PersonnelID: "p-1"}, "req-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing, got %v", err)
	}
}

func TestListScopesNonManagers(t *testing.T) {
	svc, _ := newTestService(time.Now())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, owner := range []string{"p-1", "p-2", "p-1"} {
		_, _, err := svc.Ingest(ctx, IngestInput{
			RequestID:   "req-" + string(rune('a'+i)),
			PersonnelID: owner,
			CalledAt:    base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	own, err := svc.List(ctx, Viewer{PersonnelID: "p-1"}, ListFilter{PersonnelID: "p-2"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(own) != 2 {
		t.Fatalf("expected 2 own calls, got %d", len(own))
	}
	if own[0].RequestID != "req-c" {
		t.Fatalf("expected newest first, got %s", own[0].RequestID)
	}

	all, err := svc.List(ctx, Viewer{Manager: true}, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 calls for manager, got %d", len(all))
	}

	if _, err := svc.List(ctx, Viewer{Manager: true}, ListFilter{Status: "bogus"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad status, got %v", err)
	}

	none, err := svc.List(ctx, Viewer{}, ListFilter{})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no calls without personnel, got %d (%v)", len(none), err)
	}
}

func TestDeleteRequiresManager(t *testing.T) {
	svc, _ := newTestService(time.Now())
	ctx := context.Background()
	c, _, err := svc.Ingest(ctx, IngestInput{RequestID: "req-1", PersonnelID: "p-1"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := svc.Delete(ctx, Viewer{PersonnelID: "p-1"}, c.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, Viewer{Manager: true}, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, Viewer{Manager: true}, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStatsRoundsAndCaches(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	svc, repo := newTestService(now)
	ctx := context.Background()

	inputs := []IngestInput{
		{RequestID: "req-1", PersonnelID: "p-1", CalledAt: now.Add(-time.Hour), Analysis: analysisWithScore(t, "Çözüldü", 7.25)},
		{RequestID: "req-2", PersonnelID: "p-1", CalledAt: now.Add(-48 * time.Hour), Analysis: analysisWithScore(t, "Kısmen Çözüldü", 8)},
	}
	for _, in := range inputs {
		if _, _, err := svc.Ingest(ctx, in); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	st, err := svc.Stats(ctx, Viewer{PersonnelID: "p-1"})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalCalls != 2 || st.CompletedCalls != 1 || st.TodayCalls != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.AvgScore != 7.6 {
		t.Fatalf("expected avg 7.6, got %v", st.AvgScore)
	}
	if st.ActivePersonnel != nil {
		t.Fatalf("personnel stats should not carry active personnel")
	}

	admin, err := svc.Stats(ctx, Viewer{Manager: true})
	if err != nil {
		t.Fatalf("admin Stats: %v", err)
	}
	if admin.ActivePersonnel == nil || *admin.ActivePersonnel != 4 {
		t.Fatalf("expected active personnel 4, got %v", admin.ActivePersonnel)
	}

	// Writes that bypass the service are not visible until the cache is invalidated.
	if _, err := repo.Create(ctx, Call{ID: "direct", PersonnelID: "p-1", CalledAt: now, Status: StatusCompleted}); err != nil {
		t.Fatalf("repo.Create: %v", err)
	}
	cached, _ := svc.AdminStats(ctx)
	if cached.TotalCalls != 2 {
		t.Fatalf("expected cached total 2, got %d", cached.TotalCalls)
	}

	if _, _, err := svc.Ingest(ctx, IngestInput{RequestID: "req-3", PersonnelID: "p-2", CalledAt: now}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	fresh, _ := svc.AdminStats(ctx)
	if fresh.TotalCalls != 4 {
		t.Fatalf("expected fresh total 4, got %d", fresh.TotalCalls)
	}
}

func TestUnownedCallVisibleToManagersOnly(t *testing.T) {
	svc, _ := newTestService(time.Now())
	ctx := context.Background()
	c, _, err := svc.Ingest(ctx, IngestInput{RequestID: "r-unowned", Transcript: "secret"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	staff := Viewer{PersonnelID: "p-2"}
	if _, err := svc.Get(ctx, staff, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
	if _, err := svc.FindByRequestID(ctx, staff, "r-unowned"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from FindByRequestID, got %v", err)
	}
	if _, err := svc.FindByRequestID(ctx, Viewer{}, "r-unowned"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected viewer without personnel to see nothing, got %v", err)
	}
	items, err := svc.List(ctx, staff, ListFilter{})
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty list, got %d items err=%v", len(items), err)
	}

	got, err := svc.FindByRequestID(ctx, Viewer{Manager: true}, "r-unowned")
	if err != nil || got.Transcript != "secret" {
		t.Fatalf("expected manager to see unowned call, got %+v err=%v", got, err)
	}
}

func TestStatsCountUnscoredCallsAsZero(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)
	ctx := context.Background()

	inputs := []IngestInput{
		{RequestID: "req-1", PersonnelID: "p-1", CalledAt: now, Analysis: analysisWithScore(t, "Çözüldü", 9)},
		{RequestID: "req-2", PersonnelID: "p-1", CalledAt: now},
	}
	for _, in := range inputs {
		if _, _, err := svc.Ingest(ctx, in); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	st, err := svc.Stats(ctx, Viewer{PersonnelID: "p-1"})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.AvgScore != 4.5 {
		t.Fatalf("expected avg 4.5, got %v", st.AvgScore)
	}
}

func TestStatsTodayUsesServiceLocation(t *testing.T) {
	istanbul := time.FixedZone("TRT", 3*60*60)
	// 00:30 in Istanbul on March 2 is still March 1 in UTC.
	now := time.Date(2026, 3, 2, 0, 30, 0, 0, istanbul)
	svc, _ := newTestService(now)
	svc.Location = istanbul
	ctx := context.Background()

	inputs := []IngestInput{
		{RequestID: "req-today", PersonnelID: "p-1", CalledAt: now.Add(-10 * time.Minute)},
		{RequestID: "req-yesterday", PersonnelID: "p-1", CalledAt: now.Add(-time.Hour)},
	}
	for _, in := range inputs {
		if _, _, err := svc.Ingest(ctx, in); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	st, err := svc.Stats(ctx, Viewer{PersonnelID: "p-1"})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TodayCalls != 1 {
		t.Fatalf("expected 1 call today in Istanbul, got %d", st.TodayCalls)
	}
}
