package services

import (
	"context"
	"time"

	"pulmocare-server/internal/models"
)

// ConsultationStore is the persistence contract of the consultation engine.
type ConsultationStore interface {
	FindByID(ctx context.Context, id string) (*models.Consultation, error)

	// FindByTimeRange returns the non-cancelled consultations for a doctor
	// whose stored interval intersects [start, end] with inclusive bounds.
	// Callers must re-verify strict half-open overlap; inclusive bounds alone
	// would reject back-to-back bookings.
	FindByTimeRange(ctx context.Context, doctorID string, start, end time.Time) ([]models.Consultation, error)

	// FindForDoctorsInRange is FindByTimeRange over several doctors in a
	// single query, for listings that need per-doctor load without a round
	// trip each.
	FindForDoctorsInRange(ctx context.Context, doctorIDs []string, start, end time.Time) ([]models.Consultation, error)

	ListForUser(ctx context.Context, userID string, role models.Role) ([]models.Consultation, error)

	Save(ctx context.Context, c *models.Consultation) error

	// CreateBooked atomically re-verifies that the consultation's interval is
	// still free for the doctor, inserts it, creates its companion chat
	// thread and links the thread id back. Returns ErrSlotConflict when the
	// re-check or the unique slot index rejects the insert.
	CreateBooked(ctx context.Context, c *models.Consultation, thread *models.ChatThread) error
}

// UserStore is the user lookup contract used by the engine.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}
