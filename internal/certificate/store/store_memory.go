package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"catchcert/internal/certificate/models"
	"catchcert/pkg/platform/sentinel"
)

// MemoryStore is an in-memory DocumentStore used by unit suites and cacheless
// development runs. Documents are held in their JSON map form so dotted-path
// predicates and update specs evaluate exactly as they do against JSONB.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]any // keyed by document number
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]any)}
}

func (s *MemoryStore) Insert(_ context.Context, doc *models.Document) error {
	if doc == nil || doc.DocumentNumber.IsZero() {
		return fmt.Errorf("memory store: document number is required")
	}
	m, err := docToMap(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := doc.DocumentNumber.String()
	if _, exists := s.docs[key]; exists {
		return fmt.Errorf("memory store: duplicate document number %s: %w", key, sentinel.ErrConflict)
	}
	s.docs[key] = m
	return nil
}

func (s *MemoryStore) FindOne(_ context.Context, pred Predicate) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.sortedKeys() {
		if matches(s.docs[key], pred) {
			return docFromMap(s.docs[key])
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) FindMany(_ context.Context, pred Predicate, sortBy Sort, page Page) ([]models.Document, error) {
	s.mu.RLock()
	matched := make([]map[string]any, 0)
	for _, key := range s.sortedKeys() {
		if matches(s.docs[key], pred) {
			matched = append(matched, s.docs[key])
		}
	}
	s.mu.RUnlock()

	if sortBy.Path != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			less := lessAt(matched[i], matched[j], sortBy.Path)
			if sortBy.Desc {
				return !less && !jsonEqualAt(matched[i], matched[j], sortBy.Path)
			}
			return less
		})
	}

	if page.Offset > 0 {
		if page.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[page.Offset:]
		}
	}
	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}

	out := make([]models.Document, 0, len(matched))
	for _, m := range matched {
		doc, err := docFromMap(m)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (s *MemoryStore) UpdateOne(_ context.Context, pred Predicate, spec *UpdateSpec) (int64, error) {
	if spec.Empty() {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.sortedKeys() {
		if matches(s.docs[key], pred) {
			applyChanges(s.docs[key], spec)
			return 1, nil
		}
	}
	return 0, nil
}

func (s *MemoryStore) Delete(_ context.Context, pred Predicate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for _, key := range s.sortedKeys() {
		if matches(s.docs[key], pred) {
			delete(s.docs, key)
			deleted++
		}
	}
	return deleted, nil
}

// sortedKeys keeps iteration deterministic; callers hold the lock.
func (s *MemoryStore) sortedKeys() []string {
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func docToMap(doc *models.Document) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("memory store: encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("memory store: decode document: %w", err)
	}
	return m, nil
}

func docFromMap(m map[string]any) (*models.Document, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("memory store: encode document: %w", err)
	}
	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("memory store: decode document: %w", err)
	}
	return &doc, nil
}

func lessAt(a, b map[string]any, path string) bool {
	av, _ := valueAt(a, path)
	bv, _ := valueAt(b, path)
	switch x := av.(type) {
	case string:
		y, _ := bv.(string)
		return x < y
	case float64:
		y, _ := bv.(float64)
		return x < y
	default:
		return false
	}
}

func jsonEqualAt(a, b map[string]any, path string) bool {
	av, _ := valueAt(a, path)
	bv, _ := valueAt(b, path)
	return jsonEqual(av, bv)
}
