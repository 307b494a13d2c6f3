package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pulmocare-server/internal/models"
	"pulmocare-server/internal/scheduling"
)

// GormConsultationStore is the MySQL-backed ConsultationStore.
type GormConsultationStore struct {
	DB *gorm.DB
}

// NewGormConsultationStore creates a GormConsultationStore.
func NewGormConsultationStore(db *gorm.DB) *GormConsultationStore {
	return &GormConsultationStore{DB: db}
}

var _ ConsultationStore = (*GormConsultationStore)(nil)

// FindByID fetches a consultation with its parties preloaded.
func (s *GormConsultationStore) FindByID(ctx context.Context, id string) (*models.Consultation, error) {
	var consultation models.Consultation
	err := s.DB.WithContext(ctx).Preload("Patient").Preload("Doctor").
		First(&consultation, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &consultation, nil
}

// FindByTimeRange returns the doctor's non-cancelled consultations whose
// stored interval intersects [start, end] with inclusive bounds.
func (s *GormConsultationStore) FindByTimeRange(ctx context.Context, doctorID string, start, end time.Time) ([]models.Consultation, error) {
	var consultations []models.Consultation
	err := s.DB.WithContext(ctx).
		Where("doctor_id = ? AND status <> ?", doctorID, models.StatusCancelled).
		Where("scheduled_date_time <= ? AND DATE_ADD(scheduled_date_time, INTERVAL duration MINUTE) >= ?", end, start).
		Order("scheduled_date_time asc").
		Find(&consultations).Error
	if err != nil {
		return nil, err
	}
	return consultations, nil
}

// FindForDoctorsInRange returns the non-cancelled consultations of all given
// doctors intersecting [start, end] with inclusive bounds, in one query.
func (s *GormConsultationStore) FindForDoctorsInRange(ctx context.Context, doctorIDs []string, start, end time.Time) ([]models.Consultation, error) {
	if len(doctorIDs) == 0 {
		return nil, nil
	}
	var consultations []models.Consultation
	err := s.DB.WithContext(ctx).
		Where("doctor_id IN ? AND status <> ?", doctorIDs, models.StatusCancelled).
		Where("scheduled_date_time <= ? AND DATE_ADD(scheduled_date_time, INTERVAL duration MINUTE) >= ?", end, start).
		Find(&consultations).Error
	if err != nil {
		return nil, err
	}
	return consultations, nil
}

// ListForUser returns the consultations visible to a user by role.
func (s *GormConsultationStore) ListForUser(ctx context.Context, userID string, role models.Role) ([]models.Consultation, error) {
	query := s.DB.WithContext(ctx).Preload("Patient").Preload("Doctor").
		Order("scheduled_date_time asc")

	switch role {
	case models.RolePatient:
		query = query.Where("patient_id = ?", userID)
	case models.RoleDoctor:
		query = query.Where("doctor_id = ?", userID)
	case models.RoleAdmin:
		// Admins see everything.
	default:
		return nil, ErrAccessDenied
	}

	var consultations []models.Consultation
	if err := query.Find(&consultations).Error; err != nil {
		return nil, err
	}
	return consultations, nil
}

// Save persists all fields of a consultation.
func (s *GormConsultationStore) Save(ctx context.Context, c *models.Consultation) error {
	return s.DB.WithContext(ctx).Save(c).Error
}

// CreateBooked inserts a consultation and its companion chat thread in a
// single transaction. The doctor's rows are locked while non-overlap is
// re-verified, and the unique (doctor_id, slot_key) index rejects whatever
// still slips through concurrently.
func (s *GormConsultationStore) CreateBooked(ctx context.Context, c *models.Consultation, thread *models.ChatThread) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		start, end := c.Interval()

		var existing []models.Consultation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("doctor_id = ? AND status <> ?", c.DoctorID, models.StatusCancelled).
			Where("scheduled_date_time <= ? AND DATE_ADD(scheduled_date_time, INTERVAL duration MINUTE) >= ?", end, start).
			Find(&existing).Error
		if err != nil {
			return err
		}
		proposed := scheduling.Interval{Start: start, End: end}
		for _, other := range existing {
			os, oe := other.Interval()
			if proposed.Overlaps(scheduling.Interval{Start: os, End: oe}) {
				return ErrSlotConflict
			}
		}

		if err := tx.Create(c).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrSlotConflict
			}
			return err
		}

		thread.ConsultationID = &c.ID
		if err := tx.Create(thread).Error; err != nil {
			return err
		}

		c.ChatThreadID = &thread.ID
		return tx.Model(c).Update("chat_thread_id", thread.ID).Error
	})
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "Duplicate entry")
}

// GormUserStore is the MySQL-backed UserStore.
type GormUserStore struct {
	DB *gorm.DB
}

// NewGormUserStore creates a GormUserStore.
func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{DB: db}
}

var _ UserStore = (*GormUserStore)(nil)

// FindByID fetches a user by id.
func (s *GormUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
