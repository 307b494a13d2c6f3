package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"pulmocare-server/internal/config"
	"pulmocare-server/internal/models"
	"pulmocare-server/internal/scheduling"
)

// Actor identifies the authenticated user performing an operation. Handlers
// fill it from the token claims; the service trusts it as given.
type Actor struct {
	ID   string
	Role models.Role
}

// BookingInput carries a patient's booking request.
type BookingInput struct {
	PatientID         string
	DoctorID          string
	ScheduledDateTime time.Time
	Duration          int // minutes; 0 means the default slot length
	Timezone          string
	Type              models.ConsultationType
	Specialization    models.Specialization
	Reason            string
	Symptoms          []string
}

// NotesInput carries a doctor's post-consultation notes update.
type NotesInput struct {
	Diagnosis       string
	Prescriptions   []string
	Recommendations string
	FollowUp        bool
	FollowUpDate    *time.Time
	Severity        models.Severity
}

// AvailabilityResult is the availability listing for one doctor and day.
type AvailabilityResult struct {
	Date           string               `json:"date"`
	Doctor         models.UserSanitized `json:"doctor"`
	AvailableSlots []scheduling.Slot    `json:"availableSlots"`
	BookedSlots    int                  `json:"bookedSlots"`
}

// ConsultationService implements the scheduling and lifecycle engine: slot
// availability, conflict-checked booking, status transitions and the video
// session lifecycle.
type ConsultationService struct {
	store ConsultationStore
	users UserStore
	cfg   config.SchedulingConfig
	clock scheduling.Clock
	log   zerolog.Logger
}

// NewConsultationService wires the engine with its stores, scheduling
// configuration and clock.
func NewConsultationService(store ConsultationStore, users UserStore, cfg config.SchedulingConfig, clock scheduling.Clock, log zerolog.Logger) *ConsultationService {
	return &ConsultationService{store: store, users: users, cfg: cfg, clock: clock, log: log}
}

func (s *ConsultationService) grid() scheduling.Grid {
	return scheduling.Grid{
		StartHour:   s.cfg.WorkingHourStart,
		EndHour:     s.cfg.WorkingHourEnd,
		SlotMinutes: s.cfg.SlotMinutes,
	}
}

func (s *ConsultationService) startGrace() time.Duration {
	return time.Duration(s.cfg.StartGraceMinutes) * time.Minute
}

func (s *ConsultationService) overdueGrace() time.Duration {
	return time.Duration(s.cfg.OverdueGraceMinutes) * time.Minute
}

// activeDoctor resolves a doctor id, failing with ErrDoctorUnavailable when
// the user is missing, has another role, or is inactive.
func (s *ConsultationService) activeDoctor(ctx context.Context, doctorID string) (*models.User, error) {
	doctor, err := s.users.FindByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrDoctorUnavailable
		}
		return nil, err
	}
	if doctor.Role != models.RoleDoctor || !doctor.IsActive {
		return nil, ErrDoctorUnavailable
	}
	return doctor, nil
}

// BookedIntervals returns the occupied intervals of a doctor's non-cancelled
// consultations intersecting the given window, ascending by start.
func (s *ConsultationService) BookedIntervals(ctx context.Context, doctorID string, start, end time.Time) ([]scheduling.Interval, error) {
	consultations, err := s.store.FindByTimeRange(ctx, doctorID, start, end)
	if err != nil {
		return nil, err
	}
	intervals := make([]scheduling.Interval, 0, len(consultations))
	for _, c := range consultations {
		cs, ce := c.Interval()
		intervals = append(intervals, scheduling.Interval{Start: cs, End: ce})
	}
	return intervals, nil
}

// Availability computes the bookable slots of a doctor on one calendar day.
func (s *ConsultationService) Availability(ctx context.Context, doctorID string, date time.Time) (*AvailabilityResult, error) {
	doctor, err := s.activeDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)
	booked, err := s.BookedIntervals(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	slots := scheduling.GenerateSlots(s.grid(), dayStart, booked, s.clock.Now())
	return &AvailabilityResult{
		Date:           dayStart.Format("2006-01-02"),
		Doctor:         doctor.Sanitize(),
		AvailableSlots: slots,
		BookedSlots:    len(booked),
	}, nil
}

// HasConflict reports whether the proposed interval overlaps any
// non-cancelled consultation of the doctor. The stored query uses inclusive
// bounds, so strict half-open overlap is re-verified here; exact back-to-back
// adjacency is not a conflict.
func (s *ConsultationService) HasConflict(ctx context.Context, doctorID string, proposed scheduling.Interval) (bool, error) {
	candidates, err := s.store.FindByTimeRange(ctx, doctorID, proposed.Start, proposed.End)
	if err != nil {
		return false, err
	}
	for _, c := range candidates {
		cs, ce := c.Interval()
		if proposed.Overlaps(scheduling.Interval{Start: cs, End: ce}) {
			return true, nil
		}
	}
	return false, nil
}

func validTypes() map[models.ConsultationType]bool {
	return map[models.ConsultationType]bool{
		models.TypeRoutine: true, models.TypeFollowUp: true, models.TypeUrgent: true,
		models.TypeSecondOpinion: true, models.TypeEmergency: true,
	}
}

func validSpecializations() map[models.Specialization]bool {
	return map[models.Specialization]bool{
		models.SpecGeneral: true, models.SpecPulmonology: true, models.SpecRadiology: true,
		models.SpecCardiology: true, models.SpecOncology: true,
	}
}

func (s *ConsultationService) validateBooking(in *BookingInput) error {
	fields := map[string]string{}

	if in.Duration == 0 {
		in.Duration = s.cfg.SlotMinutes
	}
	if in.Duration < models.MinDurationMinutes || in.Duration > models.MaxDurationMinutes {
		fields["duration"] = fmt.Sprintf("must be between %d and %d minutes", models.MinDurationMinutes, models.MaxDurationMinutes)
	}
	// Length caps count characters, not bytes; multibyte input gets the same
	// bounds as ASCII.
	if n := utf8.RuneCountInString(in.Reason); n < models.MinReasonLength || n > models.MaxReasonLength {
		fields["reason"] = fmt.Sprintf("must be between %d and %d characters", models.MinReasonLength, models.MaxReasonLength)
	}
	if in.Type == "" {
		in.Type = models.TypeRoutine
	}
	if !validTypes()[in.Type] {
		fields["type"] = "unknown consultation type"
	}
	if in.Specialization == "" {
		in.Specialization = models.SpecGeneral
	}
	if !validSpecializations()[in.Specialization] {
		fields["specialization"] = "unknown specialization"
	}
	for _, symptom := range in.Symptoms {
		if n := utf8.RuneCountInString(symptom); n == 0 || n > 100 {
			fields["symptoms"] = "entries must be 1-100 characters"
			break
		}
	}
	if !in.ScheduledDateTime.After(s.clock.Now()) {
		fields["scheduledDateTime"] = "must be in the future"
	}
	return newValidationError(fields)
}

// Book validates the request, gates it on the conflict check and creates the
// consultation together with its companion chat thread in one transaction.
func (s *ConsultationService) Book(ctx context.Context, actor Actor, in BookingInput) (*models.Consultation, error) {
	if err := s.validateBooking(&in); err != nil {
		return nil, err
	}

	doctor, err := s.activeDoctor(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}

	proposed := scheduling.NewInterval(in.ScheduledDateTime, time.Duration(in.Duration)*time.Minute)
	conflict, err := s.HasConflict(ctx, in.DoctorID, proposed)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrSlotConflict
	}

	fee := doctor.ConsultationFee
	if fee == 0 {
		fee = s.cfg.DefaultFee
	}
	slotKey := models.ComputeSlotKey(in.ScheduledDateTime, s.cfg.SlotMinutes)

	consultation := &models.Consultation{
		PatientID:         in.PatientID,
		DoctorID:          in.DoctorID,
		CreatedByID:       actor.ID,
		ScheduledDateTime: in.ScheduledDateTime,
		Duration:          in.Duration,
		Timezone:          in.Timezone,
		SlotKey:           &slotKey,
		Type:              in.Type,
		Specialization:    in.Specialization,
		Status:            models.StatusScheduled,
		Reason:            in.Reason,
		Symptoms:          in.Symptoms,
		Fee:               fee,
		Currency:          "USD",
		PaymentStatus:     models.PaymentPending,
	}
	thread := &models.ChatThread{
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Kind:      models.ThreadKindConsultation,
		Subject:   fmt.Sprintf("Consultation on %s", in.ScheduledDateTime.Format("Jan 2, 2006 15:04")),
	}

	// The store re-checks overlap inside the transaction and the unique
	// (doctor_id, slot_key) index backstops concurrent bookings that pass the
	// check above at the same time.
	if err := s.store.CreateBooked(ctx, consultation, thread); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("consultation_id", consultation.ID).
		Str("doctor_id", in.DoctorID).
		Str("patient_id", in.PatientID).
		Time("scheduled_at", in.ScheduledDateTime).
		Msg("consultation booked")

	return consultation, nil
}

// Get returns a consultation if the actor is a party to it or an admin.
func (s *ConsultationService) Get(ctx context.Context, actor Actor, id string) (*models.Consultation, error) {
	consultation, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.actorOnRecord(actor, consultation) {
		return nil, ErrAccessDenied
	}
	return consultation, nil
}

// ListForActor returns the consultations visible to the actor: their own for
// patients and doctors, everything for admins.
func (s *ConsultationService) ListForActor(ctx context.Context, actor Actor) ([]models.Consultation, error) {
	return s.store.ListForUser(ctx, actor.ID, actor.Role)
}

func (s *ConsultationService) actorOnRecord(actor Actor, c *models.Consultation) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	return actor.ID == c.PatientID || actor.ID == c.DoctorID
}

// UpdateStatus performs an explicit status transition. Patients may only
// cancel; doctors and admins may apply any transition the state machine
// permits, except entering in_progress, which is reserved for StartVideo.
func (s *ConsultationService) UpdateStatus(ctx context.Context, actor Actor, id string, next models.ConsultationStatus, cancelReason string) (*models.Consultation, error) {
	consultation, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.actorOnRecord(actor, consultation) {
		return nil, ErrAccessDenied
	}
	if actor.Role == models.RolePatient && next != models.StatusCancelled {
		return nil, ErrAccessDenied
	}
	if next == models.StatusInProgress {
		return nil, ErrInvalidStateTransition
	}
	if !consultation.CanTransitionTo(next) {
		return nil, ErrInvalidStateTransition
	}

	consultation.Status = next
	if next == models.StatusCancelled {
		actorID := actor.ID
		consultation.CancelledByID = &actorID
		consultation.CancelReason = cancelReason
		// Free the slot so the doctor can be rebooked at this time.
		consultation.SlotKey = nil
	}

	if err := s.store.Save(ctx, consultation); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("consultation_id", consultation.ID).
		Str("status", string(next)).
		Str("actor_id", actor.ID).
		Msg("consultation status updated")

	return consultation, nil
}

// VideoSession is the room information returned when a video session starts.
type VideoSession struct {
	RoomID        string   `json:"roomId"`
	JitsiRoomName string   `json:"jitsiRoomName"`
	Participants  []string `json:"participants"`
}

// StartVideo transitions a confirmed consultation to in_progress. The guard
// is recomputed from the injected clock on every call, never cached.
func (s *ConsultationService) StartVideo(ctx context.Context, actor Actor, id string) (*models.Consultation, *VideoSession, error) {
	consultation, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !s.actorOnRecord(actor, consultation) {
		return nil, nil, ErrAccessDenied
	}

	now := s.clock.Now()
	if !consultation.CanStart(now, s.startGrace()) {
		return nil, nil, ErrInvalidStateTransition
	}

	consultation.Status = models.StatusInProgress
	consultation.StartedAt = &now
	if err := s.store.Save(ctx, consultation); err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("consultation_id", consultation.ID).
		Str("room_id", consultation.RoomID).
		Msg("video session started")

	session := &VideoSession{
		RoomID:        consultation.RoomID,
		JitsiRoomName: consultation.JitsiRoomName,
		Participants:  []string{consultation.PatientID, consultation.DoctorID},
	}
	return consultation, session, nil
}

// EndVideo transitions an in_progress consultation to completed.
func (s *ConsultationService) EndVideo(ctx context.Context, actor Actor, id string) (*models.Consultation, error) {
	consultation, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.actorOnRecord(actor, consultation) {
		return nil, ErrAccessDenied
	}
	if consultation.Status != models.StatusInProgress {
		return nil, ErrInvalidStateTransition
	}

	now := s.clock.Now()
	consultation.Status = models.StatusCompleted
	consultation.EndedAt = &now
	if err := s.store.Save(ctx, consultation); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("consultation_id", consultation.ID).
		Msg("video session ended")

	return consultation, nil
}

// UpdateNotes applies a doctor's clinical notes. Only the doctor on the
// record may write them; free-form fields are validated for length caps only.
func (s *ConsultationService) UpdateNotes(ctx context.Context, actor Actor, id string, in NotesInput) (*models.Consultation, error) {
	consultation, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleDoctor || actor.ID != consultation.DoctorID {
		return nil, ErrAccessDenied
	}

	fields := map[string]string{}
	if utf8.RuneCountInString(in.Diagnosis) > 2000 {
		fields["diagnosis"] = "must be at most 2000 characters"
	}
	if utf8.RuneCountInString(in.Recommendations) > 2000 {
		fields["recommendations"] = "must be at most 2000 characters"
	}
	for _, p := range in.Prescriptions {
		if utf8.RuneCountInString(p) > 500 {
			fields["prescriptions"] = "entries must be at most 500 characters"
			break
		}
	}
	if in.Severity != "" {
		switch in.Severity {
		case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
		default:
			fields["severity"] = "unknown severity"
		}
	}
	if err := newValidationError(fields); err != nil {
		return nil, err
	}

	consultation.Diagnosis = in.Diagnosis
	consultation.Prescriptions = in.Prescriptions
	consultation.Recommendations = in.Recommendations
	consultation.FollowUp = in.FollowUp
	consultation.FollowUpDate = in.FollowUpDate
	consultation.Severity = in.Severity

	if err := s.store.Save(ctx, consultation); err != nil {
		return nil, err
	}
	return consultation, nil
}

// IsOverdue reports whether a consultation ran past its window without
// completing, using the configured grace.
func (s *ConsultationService) IsOverdue(c *models.Consultation) bool {
	return c.IsOverdue(s.clock.Now(), s.overdueGrace())
}

// WeeklyLoadHours sums the booked hours of a doctor over the 7 days starting
// at from.
func (s *ConsultationService) WeeklyLoadHours(ctx context.Context, doctorID string, from time.Time) (float64, error) {
	intervals, err := s.BookedIntervals(ctx, doctorID, from, from.Add(7*24*time.Hour))
	if err != nil {
		return 0, err
	}
	var total time.Duration
	for _, iv := range intervals {
		total += iv.Duration()
	}
	return total.Hours(), nil
}

// IsDoctorAvailable flags a doctor as available in discovery listings when
// their booked hours over the next week stay under the configured threshold.
// A coarse heuristic, not a capacity constraint.
func (s *ConsultationService) IsDoctorAvailable(ctx context.Context, doctorID string) (bool, error) {
	load, err := s.WeeklyLoadHours(ctx, doctorID, s.clock.Now())
	if err != nil {
		return false, err
	}
	return load < s.cfg.WeeklyLoadHours, nil
}

// AvailabilityFlags computes the IsDoctorAvailable flag for many doctors with
// one store query over the 7-day window. Doctors with no bookings are
// available.
func (s *ConsultationService) AvailabilityFlags(ctx context.Context, doctorIDs []string) (map[string]bool, error) {
	now := s.clock.Now()
	consultations, err := s.store.FindForDoctorsInRange(ctx, doctorIDs, now, now.Add(7*24*time.Hour))
	if err != nil {
		return nil, err
	}

	load := make(map[string]time.Duration, len(doctorIDs))
	for _, c := range consultations {
		cs, ce := c.Interval()
		load[c.DoctorID] += ce.Sub(cs)
	}

	flags := make(map[string]bool, len(doctorIDs))
	for _, id := range doctorIDs {
		flags[id] = load[id].Hours() < s.cfg.WeeklyLoadHours
	}
	return flags, nil
}
