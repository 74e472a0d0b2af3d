package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/facilities-service/internal/config"
	"github.com/spec-kit/facilities-service/internal/domain"
	"github.com/spec-kit/facilities-service/internal/events"
	"github.com/spec-kit/facilities-service/internal/observability"
	"github.com/spec-kit/facilities-service/internal/repository"
	apperrors "github.com/spec-kit/facilities-service/pkg/util"
)

// SLAService runs the breach-detection and auto-close sweeps and serves
// compliance statistics. Sweep bodies are plain methods taking the sweep
// time so they can be unit tested without a timer.
type SLAService struct {
	issues     repository.IssueRepository
	audit      repository.AuditRepository
	cache      *redis.Client
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.SLAConfig
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	IssueRepo  repository.IssueRepository
	AuditRepo  repository.AuditRepository
	Cache      *redis.Client
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// BreachSweepResult counts issues flagged by one breach sweep run.
type BreachSweepResult struct {
	ResponseBreaches   int `json:"response_breaches"`
	ResolutionBreaches int `json:"resolution_breaches"`
}

// AutoCloseResult counts issues closed by one auto-close sweep run.
type AutoCloseResult struct {
	ClosedCount int `json:"closed_count"`
}

// SLAStatsResult summarizes campus compliance.
type SLAStatsResult struct {
	TotalIssues          int64   `json:"total_issues"`
	ResponseBreaches     int64   `json:"response_breaches"`
	ResolutionBreaches   int64   `json:"resolution_breaches"`
	ResponseCompliance   float64 `json:"response_compliance"`
	ResolutionCompliance float64 `json:"resolution_compliance"`
}

// NewSLAService builds the service.
func NewSLAService(cfg config.SLAConfig, deps SLADependencies) *SLAService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAService{
		issues:     deps.IssueRepo,
		audit:      deps.AuditRepo,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// RunBreachSweep flags issues whose deadlines elapsed without the
// corresponding transition. Each flag flip is a single conditional update,
// so overlapping runs degrade to no-ops and a failed run is simply retried
// wholesale on the next tick.
func (s *SLAService) RunBreachSweep(ctx context.Context, now time.Time) (BreachSweepResult, error) {
	var result BreachSweepResult

	candidates, err := s.issues.ListResponseBreachCandidates(ctx, now)
	if err != nil {
		return result, apperrors.MapError(err)
	}
	for i := range candidates {
		issue := &candidates[i]
		flipped, err := s.issues.MarkResponseBreached(ctx, issue.ID, now)
		if err != nil {
			return result, apperrors.MapError(err)
		}
		if !flipped {
			// Another sweep instance got here first.
			continue
		}
		result.ResponseBreaches++
		s.logger.Warn("response SLA breach detected",
			zap.Int64("issue_number", issue.IssueNumber),
			zap.String("priority", string(issue.Priority)))
		s.recordBreachAudit(ctx, issue, domain.AuditActionResponseBreach, nil, issue.SLAResponseDeadline, now)
		s.publishBreachEvent(ctx, issue, "RESPONSE", issue.SLAResponseDeadline, now)
	}

	candidates, err = s.issues.ListResolutionBreachCandidates(ctx, now)
	if err != nil {
		return result, apperrors.MapError(err)
	}
	for i := range candidates {
		issue := &candidates[i]
		flipped, err := s.issues.MarkResolutionBreached(ctx, issue.ID, now)
		if err != nil {
			return result, apperrors.MapError(err)
		}
		if !flipped {
			continue
		}
		result.ResolutionBreaches++
		s.logger.Warn("resolution SLA breach detected",
			zap.Int64("issue_number", issue.IssueNumber),
			zap.String("priority", string(issue.Priority)))
		s.recordBreachAudit(ctx, issue, domain.AuditActionResolutionBreach, issue.AssignedTo, issue.SLAResolutionDeadline, now)
		s.publishBreachEvent(ctx, issue, "RESOLUTION", issue.SLAResolutionDeadline, now)
	}

	s.metrics.RecordSweep("sla_breach", result.ResponseBreaches+result.ResolutionBreaches)
	s.logger.Info("SLA breach sweep completed",
		zap.Int("response_breaches", result.ResponseBreaches),
		zap.Int("resolution_breaches", result.ResolutionBreaches))
	return result, nil
}

// RunAutoCloseSweep closes issues that sat in RESOLVED beyond the grace
// window, treating silence as implicit acceptance. VERIFIED is skipped
// deliberately since no human confirmed the fix; both verified_at and
// closed_at are stamped to the sweep time.
func (s *SLAService) RunAutoCloseSweep(ctx context.Context, now time.Time) (AutoCloseResult, error) {
	var result AutoCloseResult
	cutoff := now.Add(-s.cfg.AutoCloseGrace())

	candidates, err := s.issues.ListAutoCloseCandidates(ctx, cutoff)
	if err != nil {
		return result, apperrors.MapError(err)
	}
	for i := range candidates {
		issue := &candidates[i]
		closed, err := s.issues.CloseResolved(ctx, issue.ID, now)
		if err != nil {
			return result, apperrors.MapError(err)
		}
		if !closed {
			// Status moved out of RESOLVED since the read; skip.
			continue
		}
		result.ClosedCount++
		s.recordAudit(ctx, &domain.AuditEntry{
			CampusID:   issue.CampusID,
			Action:     domain.AuditActionAutoClosed,
			EntityType: "Issue",
			EntityID:   issue.ID,
			Changes: map[string]any{
				"from":   domain.IssueStatusResolved,
				"to":     domain.IssueStatusClosed,
				"reason": fmt.Sprintf("auto-closed after %dh", s.cfg.AutoCloseGraceHours),
			},
		})
		var resolvedAt time.Time
		if issue.ResolvedAt != nil {
			resolvedAt = *issue.ResolvedAt
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventIssueAutoClosed,
			CampusID: issue.CampusID,
			IssueID:  issue.ID,
			Actor:    systemActor(),
			Payload: events.IssueAutoClosedPayload{
				IssueNumber: issue.IssueNumber,
				ResolvedAt:  resolvedAt,
				ClosedAt:    now,
			},
		})
	}

	s.metrics.RecordSweep("auto_close", result.ClosedCount)
	s.logger.Info("auto-close sweep completed", zap.Int("closed", result.ClosedCount))
	return result, nil
}

// Stats returns campus compliance percentages, served from the Redis cache
// when fresh.
func (s *SLAService) Stats(ctx context.Context, campusID string) (*SLAStatsResult, error) {
	cacheKey := "sla:stats:" + campusID
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached SLAStatsResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	row, err := s.issues.SLAStats(ctx, campusID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	stats := &SLAStatsResult{
		TotalIssues:          row.TotalIssues,
		ResponseBreaches:     row.ResponseBreaches,
		ResolutionBreaches:   row.ResolutionBreaches,
		ResponseCompliance:   compliance(row.TotalIssues, row.ResponseBreaches),
		ResolutionCompliance: compliance(row.TotalIssues, row.ResolutionBreaches),
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.cfg.StatsCacheTTL()).Err(); err != nil {
				s.logger.Debug("sla stats cache write failed", zap.Error(err))
			}
		}
	}
	return stats, nil
}

func compliance(total, breaches int64) float64 {
	if total == 0 {
		return 100
	}
	pct := float64(total-breaches) / float64(total) * 100
	return math.Round(pct*100) / 100
}

func (s *SLAService) recordBreachAudit(ctx context.Context, issue *domain.Issue, action domain.AuditAction, userID *string, deadline, breachedAt time.Time) {
	s.recordAudit(ctx, &domain.AuditEntry{
		CampusID:   issue.CampusID,
		UserID:     userID,
		Action:     action,
		EntityType: "Issue",
		EntityID:   issue.ID,
		Changes: map[string]any{
			"issueNumber": issue.IssueNumber,
			"priority":    issue.Priority,
			"deadline":    deadline,
			"breachedAt":  breachedAt,
		},
	})
}

// recordAudit is fire-and-forget: losing an audit row is preferable to
// losing SLA enforcement, so failures are logged and swallowed.
func (s *SLAService) recordAudit(ctx context.Context, entry *domain.AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", string(entry.Action)),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err))
	}
}

func (s *SLAService) publishBreachEvent(ctx context.Context, issue *domain.Issue, kind string, deadline, breachedAt time.Time) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventSLABreachDetected,
		CampusID: issue.CampusID,
		IssueID:  issue.ID,
		Actor:    systemActor(),
		Payload: events.SLABreachPayload{
			Kind:        kind,
			IssueNumber: issue.IssueNumber,
			Priority:    issue.Priority,
			Deadline:    deadline,
			BreachedAt:  breachedAt,
		},
	})
}

func (s *SLAService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
