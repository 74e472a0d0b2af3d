package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/facilities-service/internal/config"
	"github.com/spec-kit/facilities-service/internal/domain"
	"github.com/spec-kit/facilities-service/internal/events"
	"github.com/spec-kit/facilities-service/internal/observability"
)

type slaFixture struct {
	issues     *memIssueRepo
	audit      *memAuditRepo
	dispatcher *capturingDispatcher
	metrics    *observability.Metrics
	service    *SLAService
}

func newSLAFixture(t *testing.T) *slaFixture {
	t.Helper()
	f := &slaFixture{
		issues:     newMemIssueRepo(),
		audit:      newMemAuditRepo(),
		dispatcher: newCapturingDispatcher(),
		metrics:    observability.NewMetrics(),
	}
	f.service = NewSLAService(config.SLAConfig{
		BreachSweepIntervalMinutes:    60,
		AutoCloseSweepIntervalMinutes: 1440,
		AutoCloseGraceHours:           48,
		StatsCacheTTLSeconds:          300,
	}, SLADependencies{
		IssueRepo:  f.issues,
		AuditRepo:  f.audit,
		Dispatcher: f.dispatcher,
		Metrics:    f.metrics,
	})
	return f
}

func (f *slaFixture) seedIssue(status domain.IssueStatus, createdAt time.Time, responseMinutes, resolutionHours int) *domain.Issue {
	issue := &domain.Issue{
		CampusID:              testCampusID,
		CreatedBy:             "student-1",
		CategoryID:            "cat-1",
		Title:                 "Leaking pipe",
		Description:           "Steady drip under the sink",
		Priority:              domain.IssuePriorityHigh,
		Status:                status,
		SLAResponseDeadline:   createdAt.Add(time.Duration(responseMinutes) * time.Minute),
		SLAResolutionDeadline: createdAt.Add(time.Duration(resolutionHours) * time.Hour),
		CreatedAt:             createdAt,
		UpdatedAt:             createdAt,
	}
	return f.issues.put(issue)
}

func TestBreachSweepFlagsOverdueResponse(t *testing.T) {
	f := newSLAFixture(t)
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	issue := f.seedIssue(domain.IssueStatusSubmitted, createdAt, 240, 24)

	// One minute past the 240-minute response deadline.
	sweepTime := createdAt.Add(241 * time.Minute)
	result, err := f.service.RunBreachSweep(context.Background(), sweepTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ResponseBreaches)
	assert.Equal(t, 0, result.ResolutionBreaches)

	stored := f.issues.get(issue.ID)
	assert.True(t, stored.SLAResponseBreached)
	require.NotNil(t, stored.SLAResponseBreachedAt)
	assert.Equal(t, sweepTime, *stored.SLAResponseBreachedAt)
	// Status is untouched; breach flags never drive transitions.
	assert.Equal(t, domain.IssueStatusSubmitted, stored.Status)

	audits := f.audit.byAction(domain.AuditActionResponseBreach)
	require.Len(t, audits, 1)
	assert.Nil(t, audits[0].UserID)
	assert.Len(t, f.dispatcher.byType(events.EventSLABreachDetected), 1)
}

func TestBreachSweepFlagsOverdueResolution(t *testing.T) {
	f := newSLAFixture(t)
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	staffID := "staff-1"
	issue := f.seedIssue(domain.IssueStatusInProgress, createdAt, 240, 24)
	require.NoError(t, f.issues.SetAssignee(context.Background(), issue.ID, testCampusID, staffID, createdAt))

	sweepTime := createdAt.Add(25 * time.Hour)
	result, err := f.service.RunBreachSweep(context.Background(), sweepTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ResolutionBreaches)

	stored := f.issues.get(issue.ID)
	assert.True(t, stored.SLAResolutionBreached)
	assert.Equal(t, domain.IssueStatusInProgress, stored.Status)

	audits := f.audit.byAction(domain.AuditActionResolutionBreach)
	require.Len(t, audits, 1)
	require.NotNil(t, audits[0].UserID)
	assert.Equal(t, staffID, *audits[0].UserID)
}

func TestBreachSweepIdempotent(t *testing.T) {
	f := newSLAFixture(t)
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.seedIssue(domain.IssueStatusSubmitted, createdAt, 240, 24)

	ctx := context.Background()
	sweepTime := createdAt.Add(300 * time.Minute)
	first, err := f.service.RunBreachSweep(ctx, sweepTime)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ResponseBreaches)

	second, err := f.service.RunBreachSweep(ctx, sweepTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, second.ResponseBreaches)
	assert.Equal(t, 0, second.ResolutionBreaches)

	// Exactly one audit row and one event despite two runs.
	assert.Len(t, f.audit.byAction(domain.AuditActionResponseBreach), 1)
	assert.Len(t, f.dispatcher.byType(events.EventSLABreachDetected), 1)
	assert.Equal(t, int64(2), f.metrics.SweepRuns("sla_breach"))
}

func TestBreachSweepSkipsIssuesWithinDeadline(t *testing.T) {
	f := newSLAFixture(t)
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.seedIssue(domain.IssueStatusSubmitted, createdAt, 240, 24)

	result, err := f.service.RunBreachSweep(context.Background(), createdAt.Add(239*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, result.ResponseBreaches)
	assert.Equal(t, 0, result.ResolutionBreaches)
}

func TestBreachSweepIgnoresTerminalAndResolved(t *testing.T) {
	f := newSLAFixture(t)
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.seedIssue(domain.IssueStatusResolved, createdAt, 240, 24)
	f.seedIssue(domain.IssueStatusClosed, createdAt, 240, 24)

	result, err := f.service.RunBreachSweep(context.Background(), createdAt.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, result.ResponseBreaches)
	assert.Equal(t, 0, result.ResolutionBreaches)
}

func TestAutoCloseSweepClosesAfterGrace(t *testing.T) {
	f := newSLAFixture(t)
	resolvedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	issue := f.seedIssue(domain.IssueStatusResolved, resolvedAt.Add(-72*time.Hour), 240, 24)
	stamp := resolvedAt
	stored := f.issues.get(issue.ID)
	stored.ResolvedAt = &stamp
	require.NoError(t, f.issues.UpdateState(context.Background(), stored, domain.IssueStatusResolved))

	sweepTime := resolvedAt.Add(49 * time.Hour)
	result, err := f.service.RunAutoCloseSweep(context.Background(), sweepTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ClosedCount)

	closed := f.issues.get(issue.ID)
	assert.Equal(t, domain.IssueStatusClosed, closed.Status)
	require.NotNil(t, closed.VerifiedAt)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, sweepTime, *closed.VerifiedAt)
	assert.Equal(t, sweepTime, *closed.ClosedAt)

	audits := f.audit.byAction(domain.AuditActionAutoClosed)
	require.Len(t, audits, 1)
	assert.Len(t, f.dispatcher.byType(events.EventIssueAutoClosed), 1)

	// A later run finds nothing.
	again, err := f.service.RunAutoCloseSweep(context.Background(), resolvedAt.Add(50*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, again.ClosedCount)
}

func TestAutoCloseSweepRespectsGraceWindow(t *testing.T) {
	f := newSLAFixture(t)
	resolvedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	issue := f.seedIssue(domain.IssueStatusResolved, resolvedAt.Add(-time.Hour), 240, 24)
	stamp := resolvedAt
	stored := f.issues.get(issue.ID)
	stored.ResolvedAt = &stamp
	require.NoError(t, f.issues.UpdateState(context.Background(), stored, domain.IssueStatusResolved))

	result, err := f.service.RunAutoCloseSweep(context.Background(), resolvedAt.Add(47*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, result.ClosedCount)
	assert.Equal(t, domain.IssueStatusResolved, f.issues.get(issue.ID).Status)
}

func TestAutoCloseSweepSkipsVerified(t *testing.T) {
	f := newSLAFixture(t)
	resolvedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	issue := f.seedIssue(domain.IssueStatusVerified, resolvedAt.Add(-72*time.Hour), 240, 24)
	stamp := resolvedAt
	stored := f.issues.get(issue.ID)
	stored.ResolvedAt = &stamp
	require.NoError(t, f.issues.UpdateState(context.Background(), stored, domain.IssueStatusVerified))

	result, err := f.service.RunAutoCloseSweep(context.Background(), resolvedAt.Add(100*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, result.ClosedCount)
}

func TestBreachSweepAuditFailureNonFatal(t *testing.T) {
	f := newSLAFixture(t)
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	issue := f.seedIssue(domain.IssueStatusSubmitted, createdAt, 240, 24)
	f.audit.failNext = true

	result, err := f.service.RunBreachSweep(context.Background(), createdAt.Add(300*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ResponseBreaches)
	// The flag flip survives the lost audit row.
	assert.True(t, f.issues.get(issue.ID).SLAResponseBreached)
}

func TestStatsCompliancePercentages(t *testing.T) {
	f := newSLAFixture(t)
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.seedIssue(domain.IssueStatusSubmitted, createdAt, 240, 24)
	}
	breached := f.seedIssue(domain.IssueStatusSubmitted, createdAt, 240, 24)
	_, err := f.issues.MarkResponseBreached(ctx, breached.ID, createdAt.Add(241*time.Minute))
	require.NoError(t, err)

	stats, err := f.service.Stats(ctx, testCampusID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalIssues)
	assert.Equal(t, int64(1), stats.ResponseBreaches)
	assert.InDelta(t, 80.0, stats.ResponseCompliance, 0.001)
	assert.InDelta(t, 100.0, stats.ResolutionCompliance, 0.001)
}

func TestStatsEmptyCampusFullCompliance(t *testing.T) {
	f := newSLAFixture(t)

	stats, err := f.service.Stats(context.Background(), "campus-empty")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalIssues)
	assert.InDelta(t, 100.0, stats.ResponseCompliance, 0.001)
	assert.InDelta(t, 100.0, stats.ResolutionCompliance, 0.001)
}
