package models

import (
	"time"
)

// ChatThreadKind distinguishes consultation-companion threads from ad-hoc ones
type ChatThreadKind string

const (
	ThreadKindConsultation ChatThreadKind = "consultation"
	ThreadKindDirect       ChatThreadKind = "direct"
)

// ChatThread represents a messaging thread between a patient and a doctor.
// Consultation bookings create one automatically; the unique consultation_id
// column keeps that creation idempotent.
type ChatThread struct {
	BaseModel
	PatientID      string         `gorm:"size:36;index" json:"patientId"`
	DoctorID       string         `gorm:"size:36;index" json:"doctorId"`
	Kind           ChatThreadKind `gorm:"size:20;default:'direct'" json:"kind"`
	ConsultationID *string        `gorm:"size:36;uniqueIndex" json:"consultationId,omitempty"`
	Subject        string         `gorm:"size:255" json:"subject"`

	// Relations
	Patient  User          `gorm:"foreignKey:PatientID" json:"-"`
	Doctor   User          `gorm:"foreignKey:DoctorID" json:"-"`
	Messages []ChatMessage `gorm:"foreignKey:ThreadID" json:"messages,omitempty"`
}

// Involves reports whether the given user is a participant of the thread.
func (t *ChatThread) Involves(userID string) bool {
	return t.PatientID == userID || t.DoctorID == userID
}

// MessageStatus represents the delivery status of a chat message
type MessageStatus string

const (
	MessageStatusSent MessageStatus = "sent"
	MessageStatusRead MessageStatus = "read"
)

// ChatMessage represents a single message inside a thread
type ChatMessage struct {
	BaseModel
	ThreadID string        `gorm:"size:36;index" json:"threadId"`
	SenderID string        `gorm:"size:36;index" json:"senderId"`
	Content  string        `gorm:"type:text" json:"content"`
	Status   MessageStatus `gorm:"size:20;default:'sent'" json:"status"`
	ReadAt   *time.Time    `json:"readAt,omitempty"`

	// Relations
	Thread ChatThread `gorm:"foreignKey:ThreadID" json:"-"`
	Sender User       `gorm:"foreignKey:SenderID" json:"sender"`
}
