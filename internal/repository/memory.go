package repository

import (
	"context"
	"sync"

	"github.com/Qliqsee/1159-realty-crm-sub001/internal/domain"
)

// MemoryStore is an in-process EnrollmentStore. It backs tests and local
// development where no database is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	enrollments  map[string]domain.Enrollment
	installments map[string][]domain.Installment
	history      map[string]domain.PaymentHistory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		enrollments:  make(map[string]domain.Enrollment),
		installments: make(map[string][]domain.Installment),
		history:      make(map[string]domain.PaymentHistory),
	}
}

// Seed registers an enrollment, optionally with its payment history.
func (s *MemoryStore) Seed(e domain.Enrollment, history domain.PaymentHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[e.ID] = e
	if history != nil {
		s.history[e.ID] = history
	}
}

func (s *MemoryStore) GetEnrollment(ctx context.Context, id string) (*domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.enrollments[id]
	if !ok {
		return nil, domain.ErrEnrollmentNotFound
	}
	return &e, nil
}

func (s *MemoryStore) PaymentHistory(ctx context.Context, enrollmentID string) (domain.PaymentHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.history[enrollmentID]
	if !ok {
		return domain.PaymentHistory{}, nil
	}
	return h, nil
}

func (s *MemoryStore) SaveEnrollment(ctx context.Context, e *domain.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.enrollments[e.ID]; !ok {
		return domain.ErrEnrollmentNotFound
	}
	s.enrollments[e.ID] = *e
	return nil
}

func (s *MemoryStore) SaveInstallments(ctx context.Context, enrollmentID string, installments []domain.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]domain.Installment, len(installments))
	copy(snapshot, installments)
	s.installments[enrollmentID] = snapshot
	return nil
}

// SavedInstallments returns the last snapshot written for an enrollment.
func (s *MemoryStore) SavedInstallments(enrollmentID string) []domain.Installment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.installments[enrollmentID]
}
