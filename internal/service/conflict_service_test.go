package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
	"github.com/nadir-hamid/fst-exams-api/pkg/config"
)

func testDetector() *ConflictDetector {
	return NewConflictDetector(config.ConflictsConfig{
		MinTransitGap:  15 * time.Minute,
		MaxExamsPerDay: 3,
		LookAhead:      24 * time.Hour,
	})
}

func entry(examID string, start time.Time, minutes int, roomID string) models.ScheduleEntry {
	return models.ScheduleEntry{
		ExamID:     examID,
		ModuleID:   "mod-" + examID,
		ModuleName: "Module " + examID,
		Start:      start,
		End:        start.Add(time.Duration(minutes) * time.Minute),
		RoomID:     roomID,
		RoomName:   "Room " + roomID,
	}
}

func TestDetectEmptyAndSingleEntry(t *testing.T) {
	d := testDetector()
	require.Empty(t, d.Detect(nil))
	require.Empty(t, d.Detect([]models.ScheduleEntry{
		entry("e1", time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC), 120, "r1"),
	}))
}

func TestDetectWellSpacedScheduleIsClean(t *testing.T) {
	d := testDetector()
	day := time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)
	conflicts := d.Detect([]models.ScheduleEntry{
		entry("e1", day, 120, "r1"),
		entry("e2", day.Add(4*time.Hour), 120, "r2"),
		entry("e3", day.AddDate(0, 0, 1), 120, "r1"),
	})
	require.Empty(t, conflicts)
}

func TestDetectOverlapSeverity(t *testing.T) {
	d := testDetector()
	start := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)

	sameRoom := d.Detect([]models.ScheduleEntry{
		entry("e1", start, 120, "r1"),
		entry("e2", start.Add(time.Hour), 120, "r1"),
	})
	require.Len(t, sameRoom, 1)
	require.Equal(t, models.ConflictTypeOverlap, sameRoom[0].Type)
	require.Equal(t, models.SeverityHigh, sameRoom[0].Severity)
	require.Equal(t, []string{"e1", "e2"}, sameRoom[0].ExamIDs)

	differentRooms := d.Detect([]models.ScheduleEntry{
		entry("e1", start, 120, "r1"),
		entry("e2", start.Add(time.Hour), 120, "r2"),
	})
	require.Len(t, differentRooms, 1)
	require.Equal(t, models.SeverityCritical, differentRooms[0].Severity)
}

func TestDetectTouchingIntervalsDoNotOverlap(t *testing.T) {
	d := testDetector()
	start := time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)

	// Half-open intervals: [08:00, 10:00) and [10:00, 12:00) never overlap.
	sameRoom := d.Detect([]models.ScheduleEntry{
		entry("e1", start, 120, "r1"),
		entry("e2", start.Add(2*time.Hour), 120, "r1"),
	})
	require.Empty(t, sameRoom)

	// A zero gap across rooms is an overlap question, not a transit one.
	differentRooms := d.Detect([]models.ScheduleEntry{
		entry("e1", start, 120, "r1"),
		entry("e2", start.Add(2*time.Hour), 120, "r2"),
	})
	require.Empty(t, differentRooms)
}

func TestDetectBackToBackDifferentRooms(t *testing.T) {
	d := testDetector()
	start := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)

	// 12:00 end, 12:05 start in another room: 5 min transit is below the
	// 15 min minimum.
	conflicts := d.Detect([]models.ScheduleEntry{
		entry("e1", start, 120, "r1"),
		entry("e2", start.Add(125*time.Minute), 90, "r2"),
	})
	require.Len(t, conflicts, 1)
	require.Equal(t, models.ConflictTypeBackToBack, conflicts[0].Type)
	require.Equal(t, models.SeverityMedium, conflicts[0].Severity)

	// Same short gap in the same room is fine.
	sameRoom := d.Detect([]models.ScheduleEntry{
		entry("e1", start, 120, "r1"),
		entry("e2", start.Add(125*time.Minute), 90, "r1"),
	})
	require.Empty(t, sameRoom)
}

func TestDetectTooManyPerDay(t *testing.T) {
	d := testDetector()
	day := time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)
	conflicts := d.Detect([]models.ScheduleEntry{
		entry("e1", day, 60, "r1"),
		entry("e2", day.Add(2*time.Hour), 60, "r1"),
		entry("e3", day.Add(4*time.Hour), 60, "r1"),
		entry("e4", day.Add(6*time.Hour), 60, "r1"),
	})
	require.Len(t, conflicts, 1)
	require.Equal(t, models.ConflictTypeTooManyDay, conflicts[0].Type)
	require.Equal(t, models.SeverityLow, conflicts[0].Severity)
	require.ElementsMatch(t, []string{"e1", "e2", "e3", "e4"}, conflicts[0].ExamIDs)
}

func TestDetectIsDeterministicAcrossInputOrder(t *testing.T) {
	d := testDetector()
	day := time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)
	entries := []models.ScheduleEntry{
		entry("e1", day, 120, "r1"),
		entry("e2", day.Add(time.Hour), 120, "r2"),
		entry("e3", day.Add(245*time.Minute), 60, "r3"),
		entry("e4", day.Add(8*time.Hour), 60, "r1"),
	}
	shuffled := []models.ScheduleEntry{entries[3], entries[1], entries[0], entries[2]}

	first := d.Detect(entries)
	second := d.Detect(shuffled)
	require.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		require.False(t, first[i].OccursAt.Before(first[i-1].OccursAt))
	}
}

func TestDetectLookAheadBound(t *testing.T) {
	d := NewConflictDetector(config.ConflictsConfig{
		MinTransitGap:  15 * time.Minute,
		MaxExamsPerDay: 3,
		LookAhead:      24 * time.Hour,
	})
	start := time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)
	// Entries more than the look-ahead apart are never compared pairwise.
	conflicts := d.Detect([]models.ScheduleEntry{
		entry("e1", start, 60, "r1"),
		entry("e2", start.Add(48*time.Hour), 60, "r1"),
	})
	require.Empty(t, conflicts)
}
