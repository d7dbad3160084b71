package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"wrls/internal/notices/models"
)

// MemorySource is an in-memory recipient source for development and tests.
type MemorySource struct {
	mu       sync.RWMutex
	logs     map[string]models.DueReturnLog
	licences map[string]models.LicenceContacts
}

// NewMemorySource constructs an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		logs:     make(map[string]models.DueReturnLog),
		licences: make(map[string]models.LicenceContacts),
	}
}

// PutReturnLog inserts or replaces a return log.
func (s *MemorySource) PutReturnLog(log models.DueReturnLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[log.ID] = log
}

// PutLicence inserts or replaces the contacts held against a licence.
func (s *MemorySource) PutLicence(lc models.LicenceContacts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.licences[lc.LicenceRef] = lc
}

// Snapshot applies filter under a read lock and copies the matching logs
// and their licences.
func (s *MemorySource) Snapshot(_ context.Context, filter models.DueReturnLogFilter) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := &models.Snapshot{Licences: make(map[string]models.LicenceContacts)}
	for _, log := range s.logs {
		if !filter.Matches(log) {
			continue
		}
		snapshot.DueReturnLogs = append(snapshot.DueReturnLogs, log)
		if _, ok := snapshot.Licences[log.LicenceRef]; ok {
			continue
		}
		lc, ok := s.licences[log.LicenceRef]
		if !ok {
			lc = models.LicenceContacts{LicenceRef: log.LicenceRef}
		}
		snapshot.Licences[log.LicenceRef] = lc
	}

	slices.SortFunc(snapshot.DueReturnLogs, func(a, b models.DueReturnLog) int {
		return cmp.Or(
			cmp.Compare(a.LicenceRef, b.LicenceRef),
			cmp.Compare(a.ReturnReference, b.ReturnReference),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return snapshot, nil
}
