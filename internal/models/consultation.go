package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ConsultationStatus represents the lifecycle status of a consultation
type ConsultationStatus string

const (
	StatusScheduled  ConsultationStatus = "scheduled"
	StatusConfirmed  ConsultationStatus = "confirmed"
	StatusInProgress ConsultationStatus = "in_progress"
	StatusCompleted  ConsultationStatus = "completed"
	StatusCancelled  ConsultationStatus = "cancelled"
	StatusNoShow     ConsultationStatus = "no_show"
)

// ConsultationType represents the clinical purpose of a consultation
type ConsultationType string

const (
	TypeRoutine       ConsultationType = "routine"
	TypeFollowUp      ConsultationType = "follow_up"
	TypeUrgent        ConsultationType = "urgent"
	TypeSecondOpinion ConsultationType = "second_opinion"
	TypeEmergency     ConsultationType = "emergency"
)

// Severity represents the severity assessed in doctor notes
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// PaymentStatus represents the billing state of a consultation
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

// Validation bounds for consultation creation.
const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 120
	MinReasonLength    = 10
	MaxReasonLength    = 500
)

// Consultation represents a scheduled video consultation between a patient
// and a doctor.
type Consultation struct {
	BaseModel
	PatientID   string `gorm:"size:36;index" json:"patientId"`
	DoctorID    string `gorm:"size:36;index;uniqueIndex:uniq_doctor_slot" json:"doctorId"`
	CreatedByID string `gorm:"size:36" json:"createdById"`

	// Scheduling. SlotKey is the scheduled start truncated to the slot grid;
	// the composite unique index with DoctorID is what makes double-booking a
	// database-level impossibility. It is cleared on cancellation so the slot
	// can be rebooked (MySQL permits repeated NULLs in a unique index).
	ScheduledDateTime time.Time `gorm:"index" json:"scheduledDateTime"`
	Duration          int       `gorm:"default:30" json:"duration"` // minutes
	Timezone          string    `gorm:"size:64" json:"timezone"`    // display only
	SlotKey           *string   `gorm:"size:40;uniqueIndex:uniq_doctor_slot" json:"-"`

	Type           ConsultationType   `gorm:"size:20;default:'routine'" json:"type"`
	Specialization Specialization     `gorm:"size:30;default:'general'" json:"specialization"`
	Status         ConsultationStatus `gorm:"size:20;default:'scheduled';index" json:"status"`

	Reason   string   `gorm:"size:500;not null" json:"reason"`
	Symptoms []string `gorm:"serializer:json" json:"symptoms,omitempty"`

	// Video session
	RoomID        string     `gorm:"size:100;uniqueIndex" json:"roomId"`
	JitsiRoomName string     `gorm:"size:100" json:"jitsiRoomName"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	RecordingURL  string     `gorm:"size:500" json:"recordingUrl,omitempty"`

	// Doctor-authored clinical notes, mutable post-hoc
	Diagnosis       string     `gorm:"type:text" json:"diagnosis,omitempty"`
	Prescriptions   []string   `gorm:"serializer:json" json:"prescriptions,omitempty"`
	Recommendations string     `gorm:"type:text" json:"recommendations,omitempty"`
	FollowUp        bool       `gorm:"default:false" json:"followUp"`
	FollowUpDate    *time.Time `json:"followUpDate,omitempty"`
	Severity        Severity   `gorm:"size:10" json:"severity,omitempty"`

	// Billing
	Fee           float64       `json:"fee"`
	Currency      string        `gorm:"size:3;default:'USD'" json:"currency"`
	PaymentStatus PaymentStatus `gorm:"size:10;default:'pending'" json:"paymentStatus"`

	// Cancellation metadata, populated only on transition to cancelled
	CancelledByID *string `gorm:"size:36" json:"cancelledById,omitempty"`
	CancelReason  string  `gorm:"size:500" json:"cancelReason,omitempty"`

	ChatThreadID *string `gorm:"size:36" json:"chatThreadId,omitempty"`

	// Relations
	Patient         User             `gorm:"foreignKey:PatientID" json:"-"`
	Doctor          User             `gorm:"foreignKey:DoctorID" json:"-"`
	AnalysisRecords []AnalysisRecord `gorm:"foreignKey:ConsultationID" json:"analysisRecords,omitempty"`
}

// statusTransitions is the forward edge set of the consultation state
// machine. cancelled, no_show and completed are terminal. in_progress is
// reachable only from confirmed, via the start-video path.
var statusTransitions = map[ConsultationStatus][]ConsultationStatus{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow, StatusCompleted},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow, StatusCompleted},
	StatusInProgress: {StatusCompleted},
}

// CanTransitionTo reports whether the state machine permits moving from the
// current status to next.
func (c *Consultation) CanTransitionTo(next ConsultationStatus) bool {
	for _, allowed := range statusTransitions[c.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the consultation can no longer change status.
func (c *Consultation) IsTerminal() bool {
	return len(statusTransitions[c.Status]) == 0
}

// Interval returns the half-open occupied interval [start, start+duration).
func (c *Consultation) Interval() (time.Time, time.Time) {
	return c.ScheduledDateTime, c.ScheduledDateTime.Add(time.Duration(c.Duration) * time.Minute)
}

// CanStart reports whether the video session may begin: the consultation is
// confirmed and now is no earlier than grace before the scheduled time.
func (c *Consultation) CanStart(now time.Time, grace time.Duration) bool {
	if c.Status != StatusConfirmed {
		return false
	}
	return !now.Before(c.ScheduledDateTime.Add(-grace))
}

// IsOverdue reports whether now is past the scheduled end plus grace and the
// consultation never completed.
func (c *Consultation) IsOverdue(now time.Time, grace time.Duration) bool {
	if c.Status == StatusCompleted {
		return false
	}
	_, end := c.Interval()
	return now.After(end.Add(grace))
}

// EnsureRoomIDs generates the video room identifiers if they are not set yet.
// Called from BeforeCreate so they exist exactly once, from first persistence.
func (c *Consultation) EnsureRoomIDs(now time.Time) {
	if c.RoomID == "" {
		c.RoomID = fmt.Sprintf("consult-%s-%d", c.ID, now.Unix())
	}
	if c.JitsiRoomName == "" {
		c.JitsiRoomName = fmt.Sprintf("PulmoCare-%s-%s-%d", idSuffix(c.PatientID), idSuffix(c.DoctorID), now.Unix())
	}
}

// ComputeSlotKey returns the scheduled start truncated to the slot grid, in
// UTC, as stored in the unique booking index.
func ComputeSlotKey(start time.Time, slotMinutes int) string {
	step := time.Duration(slotMinutes) * time.Minute
	return start.UTC().Truncate(step).Format("2006-01-02T15:04")
}

// BeforeCreate assigns the UUID primary key and the one-shot room ids.
func (c *Consultation) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	c.EnsureRoomIDs(time.Now())
	return nil
}

func idSuffix(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
