package models

import (
	"time"
)

// AnalysisFinding represents the overall finding of a chest X-ray analysis
type AnalysisFinding string

const (
	FindingNormal        AnalysisFinding = "normal"
	FindingPneumonia     AnalysisFinding = "pneumonia"
	FindingIndeterminate AnalysisFinding = "indeterminate"
)

// AnalysisRecord represents a chest X-ray analysis attached to a patient,
// optionally linked to a consultation.
type AnalysisRecord struct {
	BaseModel
	PatientID      string          `gorm:"size:36;index" json:"patientId"`
	DoctorID       string          `gorm:"size:36;index" json:"doctorId"`
	ConsultationID *string         `gorm:"size:36;index" json:"consultationId,omitempty"`
	AnalyzedAt     time.Time       `json:"analyzedAt"`
	Finding        AnalysisFinding `gorm:"size:20" json:"finding"`
	Confidence     float64         `json:"confidence"`
	Summary        string          `gorm:"type:text" json:"summary"`
	Details        string          `gorm:"type:text" json:"details"`

	// Uploaded X-ray image, stored inline like the rest of the record
	ImageName string `gorm:"size:255" json:"imageName,omitempty"`
	ImageType string `gorm:"size:100" json:"imageType,omitempty"`
	ImageData []byte `gorm:"type:longblob" json:"-"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  User `gorm:"foreignKey:DoctorID" json:"-"`
}
