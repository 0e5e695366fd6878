package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nadir-hamid/fst-exams-api/internal/dto"
	"github.com/nadir-hamid/fst-exams-api/internal/models"
	"github.com/nadir-hamid/fst-exams-api/internal/repository"
	"github.com/nadir-hamid/fst-exams-api/pkg/config"
	appErrors "github.com/nadir-hamid/fst-exams-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, request *models.ModificationRequest) error
	GetByID(ctx context.Context, id string) (*models.ModificationRequest, error)
	GetPendingByStudentAndExam(ctx context.Context, studentID, examID string) (*models.ModificationRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.ModificationRequestDetail, error)
	Resolve(ctx context.Context, params repository.ResolveParams) error
}

type roomReader interface {
	GetByID(ctx context.Context, id string) (*models.Room, error)
	ListAvailable(ctx context.Context) ([]models.Room, error)
}

type roomPoolCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RequestService adjudicates modification requests: creation with business
// validation, alternative-slot suggestion, and the PENDING -> terminal
// transition.
type RequestService struct {
	repo     requestStore
	rooms    roomReader
	cache    roomPoolCache
	schedule *ScheduleService
	detector *ConflictDetector
	audit    auditWriter
	logger   *zap.Logger
	cfg      config.RequestsConfig
	cacheTTL time.Duration
	now      func() time.Time
}

// RequestServiceOption configures the service.
type RequestServiceOption func(*RequestService)

// WithRequestClock overrides the time source (tests).
func WithRequestClock(now func() time.Time) RequestServiceOption {
	return func(s *RequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRequestService constructs the service with defaults.
func NewRequestService(
	repo requestStore,
	rooms roomReader,
	cache roomPoolCache,
	schedule *ScheduleService,
	detector *ConflictDetector,
	audit auditWriter,
	logger *zap.Logger,
	cfg config.RequestsConfig,
	cacheTTL time.Duration,
	opts ...RequestServiceOption,
) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WindowMinDays <= 0 {
		cfg.WindowMinDays = 1
	}
	if cfg.WindowMaxDays <= cfg.WindowMinDays {
		cfg.WindowMaxDays = cfg.WindowMinDays + 29
	}
	if len(cfg.SlotTimes) == 0 {
		cfg.SlotTimes = []string{"08:00", "10:15", "13:00", "15:15"}
	}
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = 3
	}
	svc := &RequestService{
		repo:     repo,
		rooms:    rooms,
		cache:    cache,
		schedule: schedule,
		detector: detector,
		audit:    audit,
		logger:   logger,
		cfg:      cfg,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create validates and persists a new modification request in PENDING
// state. Validation failures carry the violated rule; nothing partial is
// stored. The write is never silently retried.
func (s *RequestService) Create(ctx context.Context, studentID string, req dto.CreateModificationRequest) (*models.ModificationRequest, error) {
	exam, err := s.schedule.ExamForStudent(ctx, studentID, req.ExamID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !exam.StartAt.After(now) {
		return nil, appErrors.Validation("EXAM_NOT_FUTURE", "requests are only accepted for exams that have not started")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Validation("REASON_REQUIRED", "a reason is required")
	}

	switch req.Type {
	case models.RequestTypeReschedule:
		if req.PreferredStart == nil {
			return nil, appErrors.Validation("PREFERRED_TIME_REQUIRED", "a preferred time is required for reschedule requests")
		}
		windowMin := now.AddDate(0, 0, s.cfg.WindowMinDays)
		windowMax := now.AddDate(0, 0, s.cfg.WindowMaxDays)
		if req.PreferredStart.Before(windowMin) || req.PreferredStart.After(windowMax) {
			return nil, appErrors.Validation("PREFERRED_TIME_WINDOW",
				fmt.Sprintf("preferred time must fall between %d and %d days from now", s.cfg.WindowMinDays, s.cfg.WindowMaxDays))
		}
	case models.RequestTypeRoomChange:
		if req.PreferredRoom == nil || *req.PreferredRoom == "" {
			return nil, appErrors.Validation("PREFERRED_ROOM_REQUIRED", "a preferred room is required for room change requests")
		}
		room, err := s.rooms.GetByID(ctx, *req.PreferredRoom)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown room")
			}
			return nil, s.storeError(err, "failed to load room")
		}
		if !room.Available {
			return nil, appErrors.Validation("ROOM_UNAVAILABLE", "the preferred room is not available")
		}
	case models.RequestTypeOther:
		// no extra constraints
	default:
		return nil, appErrors.Validation("TYPE_INVALID", "unsupported request type")
	}

	request := &models.ModificationRequest{
		StudentID:      studentID,
		ExamID:         exam.ID,
		Type:           req.Type,
		Reason:         strings.TrimSpace(req.Reason),
		PreferredStart: req.PreferredStart,
		PreferredRoom:  req.PreferredRoom,
		Status:         models.RequestStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, s.storeError(err, "failed to create modification request")
	}

	s.emitAudit(ctx, studentID, models.AuditActionRequestCreate, request)
	return request, nil
}

// Resolve applies the adjudicator decision. Only PENDING requests may
// transition; a request already adjudicated (including concurrently) fails
// with InvalidTransition. Response text and timestamp are written in the
// same statement as the status.
func (s *RequestService) Resolve(ctx context.Context, requestID string, req dto.ResolveModificationRequest, actorID string) (*models.ModificationRequest, error) {
	if !req.Decision.Terminal() {
		return nil, appErrors.Validation("DECISION_INVALID", "decision must be ACCEPTED, REJECTED or PROCESSED")
	}
	if strings.TrimSpace(req.Response) == "" {
		return nil, appErrors.Validation("RESPONSE_REQUIRED", "a response text is required")
	}

	err := s.repo.Resolve(ctx, repository.ResolveParams{
		ID:          requestID,
		Status:      req.Decision,
		Response:    strings.TrimSpace(req.Response),
		RespondedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing row from a lost adjudication race.
			if _, getErr := s.repo.GetByID(ctx, requestID); getErr != nil {
				if errors.Is(getErr, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown request")
				}
				return nil, s.storeError(getErr, "failed to load request")
			}
			return nil, appErrors.ErrInvalidTransition
		}
		return nil, s.storeError(err, "failed to resolve request")
	}

	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.storeError(err, "failed to load resolved request")
	}
	s.emitAudit(ctx, actorID, models.AuditActionRequestResolve, request)
	return request, nil
}

// Get returns a single request, enforcing that students only read their own.
func (s *RequestService) Get(ctx context.Context, requestID string, actor *models.JWTClaims) (*models.ModificationRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := retryRead(ctx, func() (*models.ModificationRequest, error) {
		return s.repo.GetByID(ctx, requestID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown request")
		}
		return nil, s.storeError(err, "failed to load request")
	}
	if actor.Role == models.RoleStudent && !actor.ActsFor(request.StudentID) {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// List returns requests visible to the actor. Students only see their own;
// the administration roles see everything.
func (s *RequestService) List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.ModificationRequestDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.RequestFilter{
		StudentID: query.StudentID,
		ExamID:    query.ExamID,
		Status:    query.Status,
		Type:      query.Type,
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleViceDean, models.RoleDepartmentHead:
		// full access
	case models.RoleStudent:
		if actor.LinkedID == "" {
			return nil, appErrors.ErrForbidden
		}
		filter.StudentID = actor.LinkedID
	default:
		return nil, appErrors.ErrForbidden
	}

	requests, err := retryRead(ctx, func() ([]models.ModificationRequestDetail, error) {
		return s.repo.List(ctx, filter)
	})
	if err != nil {
		return nil, s.storeError(err, "failed to list requests")
	}
	return requests, nil
}

// SuggestAlternatives builds a lazy, finite, restartable iterator over
// candidate slots for the given exam. Candidates are drawn from available
// rooms crossed with the configured daily slot times inside the request
// window, ordered nearest-first to the pending request's preferred time
// (falling back to the original exam time), and filtered so no suggestion
// would itself conflict with the student's remaining schedule.
func (s *RequestService) SuggestAlternatives(ctx context.Context, studentID, examID string) (*SlotIterator, error) {
	exam, err := s.schedule.ExamForStudent(ctx, studentID, examID)
	if err != nil {
		return nil, err
	}

	entries, err := s.schedule.BuildEntries(ctx, studentID)
	if err != nil {
		return nil, err
	}
	remaining := make([]models.ScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.ExamID != examID {
			remaining = append(remaining, entry)
		}
	}

	rooms, err := s.availableRooms(ctx)
	if err != nil {
		return nil, err
	}

	anchor := exam.StartAt
	if pending, err := s.repo.GetPendingByStudentAndExam(ctx, studentID, examID); err == nil && pending.PreferredStart != nil {
		anchor = *pending.PreferredStart
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, s.storeError(err, "failed to load pending request")
	}

	starts := s.candidateStarts(anchor)
	duration := time.Duration(exam.DurationMinutes) * time.Minute
	original := *exam

	check := func(slot models.CandidateSlot) bool {
		if slot.Start.Equal(original.StartAt) && slot.RoomID == original.RoomID {
			return false
		}
		candidate := models.ScheduleEntry{
			ExamID:     original.ID,
			ModuleID:   original.ModuleID,
			ModuleName: original.ModuleName,
			Start:      slot.Start,
			End:        slot.Start.Add(duration),
			RoomID:     slot.RoomID,
			RoomName:   slot.RoomName,
		}
		trial := append(append(make([]models.ScheduleEntry, 0, len(remaining)+1), remaining...), candidate)
		for _, conflict := range s.detector.Detect(trial) {
			for _, id := range conflict.ExamIDs {
				if id == original.ID {
					return false
				}
			}
		}
		return true
	}

	return newSlotIterator(starts, rooms, check), nil
}

// PreviewAlternatives consumes the iterator up to limit slots (the
// configured preview limit when limit <= 0).
func (s *RequestService) PreviewAlternatives(ctx context.Context, studentID, examID string, limit int) ([]models.CandidateSlot, error) {
	iterator, err := s.SuggestAlternatives(ctx, studentID, examID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.PreviewLimit
	}
	return iterator.Take(limit), nil
}

// AvailableRooms exposes the cached pool of rooms flagged available.
func (s *RequestService) AvailableRooms(ctx context.Context) ([]models.Room, error) {
	return s.availableRooms(ctx)
}

// availableRooms serves the room pool from cache when possible. The pool is
// slow-moving reference data; a short TTL keeps suggestions fresh enough.
func (s *RequestService) availableRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if s.cache != nil {
		if err := s.cache.Get(ctx, repository.RoomPoolCacheKey, &rooms); err == nil {
			return rooms, nil
		}
	}

	rooms, err := retryRead(ctx, func() ([]models.Room, error) {
		return s.rooms.ListAvailable(ctx)
	})
	if err != nil {
		return nil, s.storeError(err, "failed to list rooms")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, repository.RoomPoolCacheKey, rooms, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache room pool", zap.Error(err))
		}
	}
	return rooms, nil
}

// candidateStarts enumerates every slot start inside the request window,
// sorted by proximity to the anchor (ties resolved chronologically).
func (s *RequestService) candidateStarts(anchor time.Time) []time.Time {
	now := s.now().UTC()
	first := now.AddDate(0, 0, s.cfg.WindowMinDays)
	last := now.AddDate(0, 0, s.cfg.WindowMaxDays)

	starts := make([]time.Time, 0, s.cfg.WindowMaxDays*len(s.cfg.SlotTimes))
	for day := truncateToDay(first); !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, raw := range s.cfg.SlotTimes {
			slot, err := time.Parse("15:04", raw)
			if err != nil {
				continue
			}
			start := time.Date(day.Year(), day.Month(), day.Day(), slot.Hour(), slot.Minute(), 0, 0, time.UTC)
			if start.Before(first) || start.After(last) {
				continue
			}
			starts = append(starts, start)
		}
	}

	sort.SliceStable(starts, func(i, j int) bool {
		di, dj := absDuration(starts[i].Sub(anchor)), absDuration(starts[j].Sub(anchor))
		if di == dj {
			return starts[i].Before(starts[j])
		}
		return di < dj
	})
	return starts
}

func (s *RequestService) storeError(err error, message string) error {
	if appErrors.IsTransient(err) {
		return appErrors.FromError(err)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *RequestService) emitAudit(ctx context.Context, userID, action string, request *models.ModificationRequest) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(request)
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "modification_request",
		ResourceID: &request.ID,
		NewValues:  payload,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err))
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// SlotIterator lazily walks the candidate grid. It is finite (the grid is
// bounded by the request window) and restartable via Reset.
type SlotIterator struct {
	starts []time.Time
	rooms  []models.Room
	check  func(models.CandidateSlot) bool
	i, j   int
}

func newSlotIterator(starts []time.Time, rooms []models.Room, check func(models.CandidateSlot) bool) *SlotIterator {
	return &SlotIterator{starts: starts, rooms: rooms, check: check}
}

// Next yields the next conflict-free slot, or false when exhausted.
func (it *SlotIterator) Next() (models.CandidateSlot, bool) {
	for it.i < len(it.starts) {
		for it.j < len(it.rooms) {
			room := it.rooms[it.j]
			it.j++
			slot := models.CandidateSlot{Start: it.starts[it.i], RoomID: room.ID, RoomName: room.Name}
			if it.check == nil || it.check(slot) {
				return slot, true
			}
		}
		it.i++
		it.j = 0
	}
	return models.CandidateSlot{}, false
}

// Reset rewinds the iterator to the first candidate.
func (it *SlotIterator) Reset() {
	it.i, it.j = 0, 0
}

// Take consumes up to limit slots from the current position.
func (it *SlotIterator) Take(limit int) []models.CandidateSlot {
	slots := make([]models.CandidateSlot, 0, limit)
	for len(slots) < limit {
		slot, ok := it.Next()
		if !ok {
			break
		}
		slots = append(slots, slot)
	}
	return slots
}
