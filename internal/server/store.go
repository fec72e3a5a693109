package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/utils"
)

var (
	// ErrBatchNotFound is returned for an unknown batch ID
	ErrBatchNotFound = errors.New("batch not found")
	// ErrBatchExists is returned when creating a batch with a taken ID
	ErrBatchExists = errors.New("batch already exists")
	// ErrBatchTerminal is returned when a finished batch is asked to change
	ErrBatchTerminal = errors.New("batch is in a terminal state")
	// ErrBatchIDMissing is returned when an operation gets an empty ID
	ErrBatchIDMissing = errors.New("batch id is required")
)

// BatchStore keeps batches in memory. Readers get copies.
type BatchStore struct {
	mu      sync.RWMutex
	batches map[string]*models.Batch
}

func NewBatchStore() *BatchStore {
	return &BatchStore{
		batches: make(map[string]*models.Batch),
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// Create registers a pending batch. An empty id gets a generated one.
func (s *BatchStore) Create(id string, req models.BatchRequest, callbackURL string) (models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = utils.NewBatchID()
	}
	if _, exists := s.batches[id]; exists {
		return models.Batch{}, fmt.Errorf("%w: %s", ErrBatchExists, id)
	}

	b := &models.Batch{
		ID:          id,
		Status:      models.BatchStatusPending,
		Request:     req,
		CallbackURL: callbackURL,
		CreatedAt:   nowUTC(),
	}
	s.batches[id] = b
	return *b, nil
}

func (s *BatchStore) Get(id string) (models.Batch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return models.Batch{}, false
	}
	return *b, true
}

// List returns batches newest first, optionally filtered by status.
// An empty status matches every batch.
func (s *BatchStore) List(limit, offset int, status models.BatchStatus) []models.Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	all := make([]models.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		if status != "" && b.Status != status {
			continue
		}
		all = append(all, *b)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []models.Batch{}
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// SetStatus moves a batch to status. A terminal batch never changes again.
func (s *BatchStore) SetStatus(id string, status models.BatchStatus, errMsg string) (models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return models.Batch{}, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	if b.Status.Terminal() {
		return *b, fmt.Errorf("%w: %s is %s", ErrBatchTerminal, id, b.Status)
	}

	b.Status = status
	if errMsg != "" {
		b.Error = errMsg
	}
	switch {
	case status == models.BatchStatusRunning:
		if b.StartedAt.IsZero() {
			b.StartedAt = nowUTC()
		}
	case status.Terminal():
		b.EndedAt = nowUTC()
	}
	return *b, nil
}

// Complete stores the result and marks the batch completed in one step
func (s *BatchStore) Complete(id string, result *models.BatchResult) (models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return models.Batch{}, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	if b.Status.Terminal() {
		return *b, fmt.Errorf("%w: %s is %s", ErrBatchTerminal, id, b.Status)
	}
	b.Result = result
	if result != nil {
		b.TrialsDone = result.Trials
	}
	b.Status = models.BatchStatusCompleted
	b.EndedAt = nowUTC()
	return *b, nil
}

// SetProgress records how many trials have finished
func (s *BatchStore) SetProgress(id string, done int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.batches[id]; ok && done > b.TrialsDone {
		b.TrialsDone = done
	}
}
