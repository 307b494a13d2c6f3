package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"pulmocare-server/internal/config"
	"pulmocare-server/internal/models"
	"pulmocare-server/internal/scheduling"
)

var (
	testNow       = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	testScheduled = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
)

func testSchedulingConfig() config.SchedulingConfig {
	return config.SchedulingConfig{
		WorkingHourStart:    9,
		WorkingHourEnd:      17,
		SlotMinutes:         30,
		StartGraceMinutes:   5,
		OverdueGraceMinutes: 15,
		DefaultFee:          50,
		WeeklyLoadHours:     40,
	}
}

func testDoctor() *models.User {
	doctor := &models.User{
		Role:            models.RoleDoctor,
		Specialization:  models.SpecPulmonology,
		ConsultationFee: 80,
		IsActive:        true,
	}
	doctor.ID = "doctor-1"
	return doctor
}

func newTestService(store *MockConsultationStore, users *MockUserStore, now time.Time) *ConsultationService {
	return NewConsultationService(store, users, testSchedulingConfig(), scheduling.FixedClock{Time: now}, zerolog.Nop())
}

func doctorStore(doctor *models.User) *MockUserStore {
	return &MockUserStore{
		FindByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			if doctor != nil && id == doctor.ID {
				return doctor, nil
			}
			return nil, ErrNotFound
		},
	}
}

func validBooking() BookingInput {
	return BookingInput{
		PatientID:         "patient-1",
		DoctorID:          "doctor-1",
		ScheduledDateTime: testScheduled,
		Type:              models.TypeRoutine,
		Reason:            "persistent cough and chest pain",
		Symptoms:          []string{"cough", "chest pain"},
	}
}

// ---------------------------------------------------------------------------
// Book
// ---------------------------------------------------------------------------

func TestBook_CreatesConsultationAndThread(t *testing.T) {
	store := &MockConsultationStore{}
	svc := newTestService(store, doctorStore(testDoctor()), testNow)

	actor := Actor{ID: "patient-1", Role: models.RolePatient}
	consultation, err := svc.Book(context.Background(), actor, validBooking())

	assert.NoError(t, err)
	assert.Equal(t, 1, store.CreateBookedCalls)
	assert.Equal(t, models.StatusScheduled, consultation.Status)
	assert.Equal(t, 30, consultation.Duration, "duration defaults to the slot length")
	assert.Equal(t, 80.0, consultation.Fee, "fee comes from the doctor's configured fee")
	assert.Equal(t, "patient-1", consultation.CreatedByID)
	assert.NotNil(t, consultation.SlotKey)
	assert.Equal(t, "2025-06-01T10:00", *consultation.SlotKey)
	assert.NotNil(t, consultation.ChatThreadID)
	if assert.Len(t, store.CreatedThreads, 1) {
		thread := store.CreatedThreads[0]
		assert.Equal(t, models.ThreadKindConsultation, thread.Kind)
		assert.Equal(t, "patient-1", thread.PatientID)
		assert.Equal(t, "doctor-1", thread.DoctorID)
	}
}

func TestBook_UsesDefaultFeeWhenDoctorHasNone(t *testing.T) {
	doctor := testDoctor()
	doctor.ConsultationFee = 0
	store := &MockConsultationStore{}
	svc := newTestService(store, doctorStore(doctor), testNow)

	consultation, err := svc.Book(context.Background(), Actor{ID: "patient-1", Role: models.RolePatient}, validBooking())

	assert.NoError(t, err)
	assert.Equal(t, 50.0, consultation.Fee)
}

func TestBook_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BookingInput)
		field  string
	}{
		{"short reason", func(in *BookingInput) { in.Reason = "cough" }, "reason"},
		{"short multibyte reason", func(in *BookingInput) { in.Reason = "咳嗽和胸痛" }, "reason"}, // 5 characters, 15 bytes
		{"oversized symptom", func(in *BookingInput) { in.Symptoms = []string{strings.Repeat("a", 101)} }, "symptoms"},
		{"duration too short", func(in *BookingInput) { in.Duration = 10 }, "duration"},
		{"duration too long", func(in *BookingInput) { in.Duration = 180 }, "duration"},
		{"bad type", func(in *BookingInput) { in.Type = "walk_in" }, "type"},
		{"bad specialization", func(in *BookingInput) { in.Specialization = "dermatology" }, "specialization"},
		{"in the past", func(in *BookingInput) { in.ScheduledDateTime = testNow.Add(-time.Hour) }, "scheduledDateTime"},
		{"exactly now", func(in *BookingInput) { in.ScheduledDateTime = testNow }, "scheduledDateTime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockConsultationStore{}
			svc := newTestService(store, doctorStore(testDoctor()), testNow)

			in := validBooking()
			tt.mutate(&in)
			_, err := svc.Book(context.Background(), Actor{ID: "patient-1", Role: models.RolePatient}, in)

			var verr *ValidationError
			if assert.ErrorAs(t, err, &verr) {
				assert.Contains(t, verr.Fields, tt.field)
			}
			assert.Zero(t, store.CreateBookedCalls, "nothing may be persisted on validation failure")
		})
	}
}

func TestBook_ReasonLengthCountsCharacters(t *testing.T) {
	// 12 CJK characters are 36 bytes; a byte count would misjudge both sides
	// of the 10-500 bound.
	store := &MockConsultationStore{}
	svc := newTestService(store, doctorStore(testDoctor()), testNow)

	in := validBooking()
	in.Reason = "持续咳嗽并且胸口疼痛两周"
	_, err := svc.Book(context.Background(), Actor{ID: "patient-1", Role: models.RolePatient}, in)

	assert.NoError(t, err)
	assert.Equal(t, 1, store.CreateBookedCalls)
}

func TestBook_DoctorUnavailable(t *testing.T) {
	inactive := testDoctor()
	inactive.IsActive = false
	patient := &models.User{Role: models.RolePatient}
	patient.ID = "doctor-1" // right id, wrong role

	tests := []struct {
		name   string
		doctor *models.User
	}{
		{"missing doctor", nil},
		{"inactive doctor", inactive},
		{"not a doctor", patient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockConsultationStore{}
			svc := newTestService(store, doctorStore(tt.doctor), testNow)

			_, err := svc.Book(context.Background(), Actor{ID: "patient-1", Role: models.RolePatient}, validBooking())
			assert.ErrorIs(t, err, ErrDoctorUnavailable)
		})
	}
}

func TestBook_ConflictingBookingRejected(t *testing.T) {
	// Existing confirmed consultation 10:00-10:30; proposal 10:15-10:45 must
	// fail with a slot conflict.
	existing := models.Consultation{
		DoctorID:          "doctor-1",
		ScheduledDateTime: testScheduled,
		Duration:          30,
		Status:            models.StatusConfirmed,
	}
	store := &MockConsultationStore{
		FindByTimeRangeFunc: func(ctx context.Context, doctorID string, start, end time.Time) ([]models.Consultation, error) {
			return []models.Consultation{existing}, nil
		},
	}
	svc := newTestService(store, doctorStore(testDoctor()), testNow)

	in := validBooking()
	in.ScheduledDateTime = testScheduled.Add(15 * time.Minute)
	_, err := svc.Book(context.Background(), Actor{ID: "patient-1", Role: models.RolePatient}, in)

	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.Zero(t, store.CreateBookedCalls)
}

func TestBook_BackToBackBookingAllowed(t *testing.T) {
	// The stored query has inclusive bounds and returns the 10:00-10:30
	// consultation for a 10:30 proposal; strict half-open overlap must let
	// the adjacent booking through.
	existing := models.Consultation{
		DoctorID:          "doctor-1",
		ScheduledDateTime: testScheduled,
		Duration:          30,
		Status:            models.StatusConfirmed,
	}
	store := &MockConsultationStore{
		FindByTimeRangeFunc: func(ctx context.Context, doctorID string, start, end time.Time) ([]models.Consultation, error) {
			return []models.Consultation{existing}, nil
		},
	}
	svc := newTestService(store, doctorStore(testDoctor()), testNow)

	in := validBooking()
	in.ScheduledDateTime = testScheduled.Add(30 * time.Minute)
	consultation, err := svc.Book(context.Background(), Actor{ID: "patient-1", Role: models.RolePatient}, in)

	assert.NoError(t, err)
	assert.NotNil(t, consultation)
}

func TestBook_StoreLevelConflictSurfaces(t *testing.T) {
	// Two concurrent requests can both pass HasConflict; the transactional
	// re-check in the store reports the loser.
	store := &MockConsultationStore{
		CreateBookedFunc: func(ctx context.Context, c *models.Consultation, thread *models.ChatThread) error {
			return ErrSlotConflict
		},
	}
	svc := newTestService(store, doctorStore(testDoctor()), testNow)

	_, err := svc.Book(context.Background(), Actor{ID: "patient-1", Role: models.RolePatient}, validBooking())
	assert.ErrorIs(t, err, ErrSlotConflict)
}

// ---------------------------------------------------------------------------
// Status transitions
// ---------------------------------------------------------------------------

func storedConsultation(status models.ConsultationStatus) *models.Consultation {
	slotKey := models.ComputeSlotKey(testScheduled, 30)
	c := &models.Consultation{
		PatientID:         "patient-1",
		DoctorID:          "doctor-1",
		ScheduledDateTime: testScheduled,
		Duration:          30,
		Status:            status,
		SlotKey:           &slotKey,
		RoomID:            "consult-abc-123",
		JitsiRoomName:     "PulmoCare-abc-def-123",
	}
	c.ID = "consultation-1"
	return c
}

func storeWith(c *models.Consultation) *MockConsultationStore {
	return &MockConsultationStore{
		FindByIDFunc: func(ctx context.Context, id string) (*models.Consultation, error) {
			if id == c.ID {
				return c, nil
			}
			return nil, ErrNotFound
		},
	}
}

func TestUpdateStatus_PatientCancelRecordsMetadata(t *testing.T) {
	c := storedConsultation(models.StatusScheduled)
	store := storeWith(c)
	svc := newTestService(store, doctorStore(testDoctor()), testNow)

	actor := Actor{ID: "patient-1", Role: models.RolePatient}
	updated, err := svc.UpdateStatus(context.Background(), actor, c.ID, models.StatusCancelled, "feeling better")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)
	if assert.NotNil(t, updated.CancelledByID) {
		assert.Equal(t, "patient-1", *updated.CancelledByID)
	}
	assert.Equal(t, "feeling better", updated.CancelReason)
	assert.Nil(t, updated.SlotKey, "cancellation must free the booked slot")
	assert.Len(t, store.SavedConsultations, 1)
}

func TestUpdateStatus_PatientMayOnlyCancel(t *testing.T) {
	c := storedConsultation(models.StatusScheduled)
	svc := newTestService(storeWith(c), doctorStore(testDoctor()), testNow)

	actor := Actor{ID: "patient-1", Role: models.RolePatient}
	_, err := svc.UpdateStatus(context.Background(), actor, c.ID, models.StatusConfirmed, "")

	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestUpdateStatus_DoctorConfirms(t *testing.T) {
	c := storedConsultation(models.StatusScheduled)
	svc := newTestService(storeWith(c), doctorStore(testDoctor()), testNow)

	actor := Actor{ID: "doctor-1", Role: models.RoleDoctor}
	updated, err := svc.UpdateStatus(context.Background(), actor, c.ID, models.StatusConfirmed, "")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
	assert.NotNil(t, updated.SlotKey, "non-cancel transitions keep the slot occupied")
}

func TestUpdateStatus_StrangerDenied(t *testing.T) {
	c := storedConsultation(models.StatusScheduled)
	svc := newTestService(storeWith(c), doctorStore(testDoctor()), testNow)

	actor := Actor{ID: "doctor-2", Role: models.RoleDoctor}
	_, err := svc.UpdateStatus(context.Background(), actor, c.ID, models.StatusConfirmed, "")

	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestUpdateStatus_TerminalStateRejected(t *testing.T) {
	for _, status := range []models.ConsultationStatus{models.StatusCompleted, models.StatusCancelled, models.StatusNoShow} {
		c := storedConsultation(status)
		svc := newTestService(storeWith(c), doctorStore(testDoctor()), testNow)

		actor := Actor{ID: "doctor-1", Role: models.RoleDoctor}
		_, err := svc.UpdateStatus(context.Background(), actor, c.ID, models.StatusConfirmed, "")

		assert.ErrorIs(t, err, ErrInvalidStateTransition, "from %s", status)
	}
}

func TestUpdateStatus_InProgressReservedForStartVideo(t *testing.T) {
	c := storedConsultation(models.StatusConfirmed)
	svc := newTestService(storeWith(c), doctorStore(testDoctor()), testNow)

	actor := Actor{ID: "doctor-1", Role: models.RoleDoctor}
	_, err := svc.UpdateStatus(context.Background(), actor, c.ID, models.StatusInProgress, "")

	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

// ---------------------------------------------------------------------------
// Video session lifecycle
// ---------------------------------------------------------------------------

func TestStartVideo_TooEarlyFails(t *testing.T) {
	c := storedConsultation(models.StatusConfirmed)
	svc := newTestService(storeWith(c), doctorStore(testDoctor()), testScheduled.Add(-10*time.Minute))

	_, _, err := svc.StartVideo(context.Background(), Actor{ID: "patient-1", Role: models.RolePatient}, c.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestStartVideo_ScheduledNeverStarts(t *testing.T) {
	// Inside the grace window but never confirmed.
	c := storedConsultation(models.StatusScheduled)
	svc := newTestService(storeWith(c), doctorStore(testDoctor()), testScheduled.Add(-4*time.Minute))

	_, _, err := svc.StartVideo(context.Background(), Actor{ID: "patient-1", Role: models.RolePatient}, c.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestStartVideo_ConfirmedInGraceWindowStarts(t *testing.T) {
	c := storedConsultation(models.StatusConfirmed)
	now := testScheduled.Add(-4 * time.Minute)
	store := storeWith(c)
	svc := newTestService(store, doctorStore(testDoctor()), now)

	updated, session, err := svc.StartVideo(context.Background(), Actor{ID: "patient-1", Role: models.RolePatient}, c.ID)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	if assert.NotNil(t, updated.StartedAt) {
		assert.True(t, updated.StartedAt.Equal(now))
	}
	if assert.NotNil(t, session) {
		assert.Equal(t, c.RoomID, session.RoomID)
		assert.Equal(t, c.JitsiRoomName, session.JitsiRoomName)
		assert.ElementsMatch(t, []string{"patient-1", "doctor-1"}, session.Participants)
	}
	assert.Len(t, store.SavedConsultations, 1)
}

func TestStartVideo_StrangerDenied(t *testing.T) {
	c := storedConsultation(models.StatusConfirmed)
	svc := newTestService(storeWith(c), doctorStore(testDoctor()), testScheduled)

	_, _, err := svc.StartVideo(context.Background(), Actor{ID: "patient-2", Role: models.RolePatient}, c.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestEndVideo_RequiresInProgress(t *testing.T) {
	for _, status := range []models.ConsultationStatus{models.StatusScheduled, models.StatusConfirmed, models.StatusCompleted} {
		c := storedConsultation(status)
		svc := newTestService(storeWith(c), doctorStore(testDoctor()), testScheduled.Add(20*time.Minute))

		_, err := svc.EndVideo(context.Background(), Actor{ID: "doctor-1", Role: models.RoleDoctor}, c.ID)
		assert.ErrorIs(t, err, ErrInvalidStateTransition, "from %s", status)
	}
}

func TestEndVideo_CompletesConsultation(t *testing.T) {
	c := storedConsultation(models.StatusInProgress)
	now := testScheduled.Add(25 * time.Minute)
	svc := newTestService(storeWith(c), doctorStore(testDoctor()), now)

	updated, err := svc.EndVideo(context.Background(), Actor{ID: "doctor-1", Role: models.RoleDoctor}, c.ID)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	if assert.NotNil(t, updated.EndedAt) {
		assert.True(t, updated.EndedAt.Equal(now))
	}
}

// ---------------------------------------------------------------------------
// Notes
// ---------------------------------------------------------------------------

func TestUpdateNotes_DoctorOnRecordOnly(t *testing.T) {
	c := storedConsultation(models.StatusCompleted)
	svc := newTestService(storeWith(c), doctorStore(testDoctor()), testNow)

	notes := NotesInput{Diagnosis: "community-acquired pneumonia", Severity: models.SeverityMedium}

	_, err := svc.UpdateNotes(context.Background(), Actor{ID: "patient-1", Role: models.RolePatient}, c.ID, notes)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.UpdateNotes(context.Background(), Actor{ID: "doctor-2", Role: models.RoleDoctor}, c.ID, notes)
	assert.ErrorIs(t, err, ErrAccessDenied)

	updated, err := svc.UpdateNotes(context.Background(), Actor{ID: "doctor-1", Role: models.RoleDoctor}, c.ID, notes)
	assert.NoError(t, err)
	assert.Equal(t, "community-acquired pneumonia", updated.Diagnosis)
	assert.Equal(t, models.SeverityMedium, updated.Severity)
}

func TestUpdateNotes_LengthCaps(t *testing.T) {
	c := storedConsultation(models.StatusCompleted)
	svc := newTestService(storeWith(c), doctorStore(testDoctor()), testNow)

	_, err := svc.UpdateNotes(context.Background(), Actor{ID: "doctor-1", Role: models.RoleDoctor}, c.ID, NotesInput{Diagnosis: strings.Repeat("x", 2001)})

	var verr *ValidationError
	if assert.ErrorAs(t, err, &verr) {
		assert.Contains(t, verr.Fields, "diagnosis")
	}
}

func TestUpdateNotes_LengthCapsCountCharacters(t *testing.T) {
	// 1500 CJK characters are 4500 bytes; a byte count would reject a
	// diagnosis that is within the 2000-character cap.
	c := storedConsultation(models.StatusCompleted)
	svc := newTestService(storeWith(c), doctorStore(testDoctor()), testNow)

	updated, err := svc.UpdateNotes(context.Background(), Actor{ID: "doctor-1", Role: models.RoleDoctor},
		c.ID, NotesInput{Diagnosis: strings.Repeat("肺", 1500)})

	assert.NoError(t, err)
	assert.Equal(t, 1500, len([]rune(updated.Diagnosis)))

	_, err = svc.UpdateNotes(context.Background(), Actor{ID: "doctor-1", Role: models.RoleDoctor},
		c.ID, NotesInput{Diagnosis: strings.Repeat("肺", 2001)})

	var verr *ValidationError
	if assert.ErrorAs(t, err, &verr) {
		assert.Contains(t, verr.Fields, "diagnosis")
	}
}
