package services

import (
	"context"
	"errors"
	"time"

	"pulmocare-server/internal/models"
)

// --- MockConsultationStore ---
// Compile-time check to ensure MockConsultationStore implements ConsultationStore
var _ ConsultationStore = (*MockConsultationStore)(nil)

// MockConsultationStore is a mock implementation of ConsultationStore.
type MockConsultationStore struct {
	FindByIDFunc              func(ctx context.Context, id string) (*models.Consultation, error)
	FindByTimeRangeFunc       func(ctx context.Context, doctorID string, start, end time.Time) ([]models.Consultation, error)
	FindForDoctorsInRangeFunc func(ctx context.Context, doctorIDs []string, start, end time.Time) ([]models.Consultation, error)
	ListForUserFunc           func(ctx context.Context, userID string, role models.Role) ([]models.Consultation, error)
	SaveFunc                  func(ctx context.Context, c *models.Consultation) error
	CreateBookedFunc          func(ctx context.Context, c *models.Consultation, thread *models.ChatThread) error

	SavedConsultations         []*models.Consultation
	CreatedThreads             []*models.ChatThread
	CreateBookedCalls          int
	FindByTimeRangeCalls       int
	FindForDoctorsInRangeCalls int
}

func (m *MockConsultationStore) FindByID(ctx context.Context, id string) (*models.Consultation, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, errors.New("FindByIDFunc not implemented in mock")
}

func (m *MockConsultationStore) FindByTimeRange(ctx context.Context, doctorID string, start, end time.Time) ([]models.Consultation, error) {
	m.FindByTimeRangeCalls++
	if m.FindByTimeRangeFunc != nil {
		return m.FindByTimeRangeFunc(ctx, doctorID, start, end)
	}
	return nil, nil
}

func (m *MockConsultationStore) FindForDoctorsInRange(ctx context.Context, doctorIDs []string, start, end time.Time) ([]models.Consultation, error) {
	m.FindForDoctorsInRangeCalls++
	if m.FindForDoctorsInRangeFunc != nil {
		return m.FindForDoctorsInRangeFunc(ctx, doctorIDs, start, end)
	}
	return nil, nil
}

func (m *MockConsultationStore) ListForUser(ctx context.Context, userID string, role models.Role) ([]models.Consultation, error) {
	if m.ListForUserFunc != nil {
		return m.ListForUserFunc(ctx, userID, role)
	}
	return nil, nil
}

func (m *MockConsultationStore) Save(ctx context.Context, c *models.Consultation) error {
	m.SavedConsultations = append(m.SavedConsultations, c)
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, c)
	}
	return nil
}

func (m *MockConsultationStore) CreateBooked(ctx context.Context, c *models.Consultation, thread *models.ChatThread) error {
	m.CreateBookedCalls++
	if m.CreateBookedFunc != nil {
		return m.CreateBookedFunc(ctx, c, thread)
	}
	c.ID = "consultation-id"
	thread.ID = "thread-id"
	thread.ConsultationID = &c.ID
	c.ChatThreadID = &thread.ID
	m.CreatedThreads = append(m.CreatedThreads, thread)
	return nil
}

// --- MockUserStore ---
var _ UserStore = (*MockUserStore)(nil)

// MockUserStore is a mock implementation of UserStore.
type MockUserStore struct {
	FindByIDFunc func(ctx context.Context, id string) (*models.User, error)
}

func (m *MockUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, ErrNotFound
}
