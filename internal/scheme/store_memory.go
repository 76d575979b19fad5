package scheme

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sevasetu/pkg/platform/sentinel"
)

// InMemoryStore keeps an append-only version log per scheme id. Readers never
// block each other; writers serialize per scheme through the single mutex,
// which also makes version allocation race-free.
type InMemoryStore struct {
	mu       sync.RWMutex
	versions map[string][]SchemeVersion
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		versions: make(map[string][]SchemeVersion),
		now:      time.Now,
	}
}

func (s *InMemoryStore) GetCurrent(_ context.Context, schemeID string) (SchemeVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[schemeID] {
		if v.Active {
			return v.Clone(), nil
		}
	}
	return SchemeVersion{}, fmt.Errorf("no active version for scheme %q: %w", schemeID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) GetVersion(_ context.Context, schemeID string, version int) (SchemeVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[schemeID] {
		if v.Version == version {
			return v.Clone(), nil
		}
	}
	return SchemeVersion{}, fmt.Errorf("scheme %q version %d: %w", schemeID, version, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]SchemeVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []SchemeVersion
	for _, log := range s.versions {
		for _, v := range log {
			if v.Active {
				active = append(active, v.Clone())
			}
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].SchemeID < active[j].SchemeID })
	return active, nil
}

func (s *InMemoryStore) PutNewVersion(_ context.Context, schemeID string, rules RuleSet) (SchemeVersion, error) {
	if schemeID == "" {
		return SchemeVersion{}, fmt.Errorf("%w: scheme id is required", sentinel.ErrValidation)
	}
	if err := rules.Validate(); err != nil {
		return SchemeVersion{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.versions[schemeID]
	next := 1
	if n := len(log); n > 0 {
		next = log[n-1].Version + 1
	}
	for i := range log {
		log[i].Active = false
	}

	version := SchemeVersion{
		SchemeID:          schemeID,
		Version:           next,
		Name:              rules.Name,
		Description:       rules.Description,
		Criteria:          rules.Criteria,
		Exclusions:        rules.Exclusions,
		RequiredDocuments: rules.RequiredDocuments,
		Active:            true,
		CreatedAt:         s.now(),
	}
	// Clone fully so set-membership values in the caller's RuleSet cannot
	// alias the stored version.
	s.versions[schemeID] = append(log, version.Clone())
	return version.Clone(), nil
}

func (s *InMemoryStore) ListVersions(_ context.Context, schemeID string) ([]SchemeVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.versions[schemeID]
	if !ok {
		return nil, fmt.Errorf("scheme %q: %w", schemeID, sentinel.ErrNotFound)
	}
	out := make([]SchemeVersion, 0, len(log))
	for _, v := range log {
		out = append(out, v.Clone())
	}
	return out, nil
}
