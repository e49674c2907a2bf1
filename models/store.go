package models

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// IndexStore holds the indexes served by a jord instance, keyed by name.
type IndexStore struct {
	mutex   sync.RWMutex
	ids     SequentialIDGenerator
	indexes map[string]*Index
}

func (s *IndexStore) NewID() uint32 {
	return s.ids.New()
}

// Add registers an index under its name.
func (s *IndexStore) Add(idx *Index) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.indexes == nil {
		s.indexes = make(map[string]*Index)
	}

	if _, ok := s.indexes[idx.Name]; ok {
		return errors.New("index is already added").WithTag("name", idx.Name)
	}
	s.indexes[idx.Name] = idx

	instrumentIndexAdd()
	return nil
}

func (s *IndexStore) Get(name string) (*Index, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	idx, ok := s.indexes[name]
	return idx, ok
}

// Remove unregisters and closes the index.
func (s *IndexStore) Remove(idx *Index) {
	s.mutex.Lock()
	stored, ok := s.indexes[idx.Name]
	if ok && stored == idx {
		delete(s.indexes, idx.Name)
	}
	s.mutex.Unlock()

	if !ok {
		return
	}

	idx.Close()
	s.ids.Reuse(idx.ID)
	instrumentIndexRemove()
}

func (s *IndexStore) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.indexes)
}

// Close closes every stored index.
func (s *IndexStore) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, idx := range s.indexes {
		idx.Close()
		delete(s.indexes, name)
	}
}
