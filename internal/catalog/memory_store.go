package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// MemoryStore is an in-process Store for offline mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
	slots   map[int64][]Slot
	err     error
	now     func() time.Time
}

// NewMemoryStore returns an empty catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int64]Record),
		slots:   make(map[int64][]Slot),
		now:     time.Now,
	}
}

// Put inserts or replaces a record together with its slots.
func (s *MemoryStore) Put(rec Record, slots ...Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	sorted := append([]Slot(nil), slots...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	s.slots[rec.ID] = sorted
}

// FailWith makes every subsequent call return err; nil restores normal operation.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemoryStore) ListByDateRange(_ context.Context, r model.DateRange) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}

	from, until := r.Start.Time(), r.End.AddDays(1).Time()
	var out []Record
	for id, rec := range s.records {
		if !rec.Active {
			continue
		}
		matched := false
		for _, sl := range s.slots[id] {
			start := sl.Start.UTC()
			if start.Before(from) || !start.Before(until) {
				continue
			}
			if !matched || sl.SellPrice.LessThan(rec.FromSellPrice) {
				rec.FromSellPrice = sl.SellPrice
			}
			if !matched || sl.BuyPrice.LessThan(rec.FromBuyPrice) {
				rec.FromBuyPrice = sl.BuyPrice
			}
			matched = true
		}
		if matched {
			rec.Images = nil
			rec.Categories = nil
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	rec.FromSellPrice, rec.FromBuyPrice = lowestPrices(s.slots[id], s.now())
	return &rec, nil
}

func (s *MemoryStore) Related(_ context.Context, excludeID int64, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	out := []Record{}
	for id, rec := range s.records {
		if !rec.Active || id == excludeID {
			continue
		}
		rec.FromSellPrice, rec.FromBuyPrice = lowestPrices(s.slots[id], s.now())
		rec.Images = nil
		rec.Categories = nil
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Slots(_ context.Context, id int64, date model.Date) ([]Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []Slot
	for _, sl := range s.slots[id] {
		if model.DateOf(sl.Start.UTC()) == date {
			out = append(out, sl)
		}
	}
	return out, nil
}

func (s *MemoryStore) IncrementViews(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if rec, ok := s.records[id]; ok {
		rec.Views++
		s.records[id] = rec
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
