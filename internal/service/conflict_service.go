package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nadir-hamid/fst-exams-api/internal/dto"
	"github.com/nadir-hamid/fst-exams-api/internal/models"
	"github.com/nadir-hamid/fst-exams-api/pkg/config"
)

const dayKeyLayout = "2006-01-02"

// ConflictDetector scans an ordered schedule for incompatibilities. It is a
// pure in-memory computation: no storage access, no side effects.
type ConflictDetector struct {
	minTransitGap time.Duration
	maxPerDay     int
	lookAhead     time.Duration
}

// NewConflictDetector builds a detector from configuration, applying
// defaults for unset thresholds.
func NewConflictDetector(cfg config.ConflictsConfig) *ConflictDetector {
	if cfg.MinTransitGap <= 0 {
		cfg.MinTransitGap = 15 * time.Minute
	}
	if cfg.MaxExamsPerDay <= 0 {
		cfg.MaxExamsPerDay = 3
	}
	if cfg.LookAhead <= 0 {
		cfg.LookAhead = 24 * time.Hour
	}
	return &ConflictDetector{
		minTransitGap: cfg.MinTransitGap,
		maxPerDay:     cfg.MaxExamsPerDay,
		lookAhead:     cfg.LookAhead,
	}
}

// Detect returns every conflict in the given entries. Intervals are
// half-open [start, end): touching exams do not overlap. Pairs are compared
// within a bounded look-ahead; exams starting more than the look-ahead
// apart cannot conflict under this policy. Output order is deterministic:
// earliest involved start first, ties broken by type. Empty or single-entry
// input yields an empty slice.
func (d *ConflictDetector) Detect(entries []models.ScheduleEntry) []models.Conflict {
	if len(entries) < 2 {
		return []models.Conflict{}
	}

	ordered := make([]models.ScheduleEntry, len(entries))
	copy(ordered, entries)
	sortEntries(ordered)

	conflicts := make([]models.Conflict, 0, 4)
	for i := 0; i < len(ordered)-1; i++ {
		a := ordered[i]
		for j := i + 1; j < len(ordered); j++ {
			b := ordered[j]
			if b.Start.Sub(a.Start) > d.lookAhead {
				break
			}
			if conflict, ok := d.comparePair(a, b); ok {
				conflicts = append(conflicts, conflict)
			}
		}
	}

	conflicts = append(conflicts, d.detectOverloadedDays(ordered)...)

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].OccursAt.Equal(conflicts[j].OccursAt) {
			return conflicts[i].Type < conflicts[j].Type
		}
		return conflicts[i].OccursAt.Before(conflicts[j].OccursAt)
	})
	return conflicts
}

func (d *ConflictDetector) comparePair(a, b models.ScheduleEntry) (models.Conflict, bool) {
	if a.End.After(b.Start) {
		severity := models.SeverityHigh
		detail := fmt.Sprintf("%s and %s overlap in %s", a.ModuleName, b.ModuleName, a.RoomName)
		if a.RoomID != b.RoomID {
			severity = models.SeverityCritical
			detail = fmt.Sprintf("%s in %s overlaps %s in %s", a.ModuleName, a.RoomName, b.ModuleName, b.RoomName)
		}
		return models.Conflict{
			Type:     models.ConflictTypeOverlap,
			Severity: severity,
			ExamIDs:  []string{a.ExamID, b.ExamID},
			Detail:   detail,
			OccursAt: a.Start,
		}, true
	}

	gap := b.Start.Sub(a.End)
	if gap > 0 && gap < d.minTransitGap && a.RoomID != b.RoomID {
		return models.Conflict{
			Type:     models.ConflictTypeBackToBack,
			Severity: models.SeverityMedium,
			ExamIDs:  []string{a.ExamID, b.ExamID},
			Detail: fmt.Sprintf("only %d min between %s (%s) and %s (%s), below the %d min transit minimum",
				int(gap.Minutes()), a.ModuleName, a.RoomName, b.ModuleName, b.RoomName, int(d.minTransitGap.Minutes())),
			OccursAt: a.Start,
		}, true
	}

	return models.Conflict{}, false
}

// detectOverloadedDays reports one LOW conflict per calendar day holding
// more than the allowed number of exams, listing every exam id of that day.
func (d *ConflictDetector) detectOverloadedDays(ordered []models.ScheduleEntry) []models.Conflict {
	byDay := make(map[string][]models.ScheduleEntry)
	for _, entry := range ordered {
		key := entry.Start.Format(dayKeyLayout)
		byDay[key] = append(byDay[key], entry)
	}

	days := make([]string, 0, len(byDay))
	for day, group := range byDay {
		if len(group) > d.maxPerDay {
			days = append(days, day)
		}
	}
	sort.Strings(days)

	conflicts := make([]models.Conflict, 0, len(days))
	for _, day := range days {
		group := byDay[day]
		ids := make([]string, len(group))
		for i, entry := range group {
			ids[i] = entry.ExamID
		}
		conflicts = append(conflicts, models.Conflict{
			Type:     models.ConflictTypeTooManyDay,
			Severity: models.SeverityLow,
			ExamIDs:  ids,
			Detail:   fmt.Sprintf("%d exams scheduled on %s, maximum is %d", len(group), day, d.maxPerDay),
			OccursAt: group[0].Start,
		})
	}
	return conflicts
}

// ConflictService composes the schedule index and the detector into the
// student-facing conflict view. Results are recomputed on every call so a
// schedule change can never serve a stale report.
type ConflictService struct {
	schedule *ScheduleService
	detector *ConflictDetector
	metrics  conflictObserver
	logger   *zap.Logger
}

type conflictObserver interface {
	ObserveConflictScan(duration time.Duration, conflicts []models.Conflict)
}

// NewConflictService constructs the service. metrics may be nil.
func NewConflictService(schedule *ScheduleService, detector *ConflictDetector, metrics conflictObserver, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{schedule: schedule, detector: detector, metrics: metrics, logger: logger}
}

// GetConflicts returns the student's conflicts.
func (s *ConflictService) GetConflicts(ctx context.Context, studentID string) ([]models.Conflict, error) {
	report, err := s.Report(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return report.Conflicts, nil
}

// Report returns the student's schedule entries together with the conflicts
// detected over them.
func (s *ConflictService) Report(ctx context.Context, studentID string) (*dto.ConflictReport, error) {
	entries, err := s.schedule.BuildEntries(ctx, studentID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	conflicts := s.detector.Detect(entries)
	if s.metrics != nil {
		s.metrics.ObserveConflictScan(time.Since(start), conflicts)
	}

	if len(conflicts) > 0 {
		s.logger.Debug("conflicts detected",
			zap.String("student_id", studentID),
			zap.Int("entries", len(entries)),
			zap.Int("conflicts", len(conflicts)),
		)
	}

	return &dto.ConflictReport{
		StudentID: studentID,
		Entries:   entries,
		Conflicts: conflicts,
	}, nil
}
