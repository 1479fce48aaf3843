package aggregator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Checker-Finance/experiences/internal/source"
	"github.com/Checker-Finance/experiences/pkg/model"
)

// fakeAdapter is a scripted source that counts every call.
type fakeAdapter struct {
	name    string
	healthy bool
	timeout time.Duration

	items   []model.Experience
	listErr error
	delay   time.Duration
	block   bool
	panics  bool

	details map[string]*model.ExperienceDetails
	avail   map[string]model.Availability
	availFn func(id string) (model.Availability, error)

	listCalls    atomic.Int32
	detailCalls  atomic.Int32
	availCalls   atomic.Int32
	healthCalls  atomic.Int32
	mu           sync.Mutex
	lastRange    model.DateRange
	lastDetailID string
}

func newFake(name string, items ...model.Experience) *fakeAdapter {
	return &fakeAdapter{name: name, healthy: true, items: items}
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Timeout() time.Duration { return f.timeout }

func (f *fakeAdapter) IsHealthy(context.Context) bool {
	f.healthCalls.Add(1)
	return f.healthy
}

func (f *fakeAdapter) ListExperiences(ctx context.Context, r model.DateRange, _ model.Filters) ([]model.Experience, error) {
	f.listCalls.Add(1)
	f.mu.Lock()
	f.lastRange = r
	f.mu.Unlock()
	if f.panics {
		panic("adapter exploded")
	}
	if f.block {
		// ignores ctx on purpose
		time.Sleep(300 * time.Millisecond)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.listErr != nil {
		if errors.Is(f.listErr, source.ErrDegraded) {
			return append([]model.Experience(nil), f.items...), f.listErr
		}
		return nil, f.listErr
	}
	return append([]model.Experience(nil), f.items...), nil
}

func (f *fakeAdapter) GetDetails(_ context.Context, id string) (*model.ExperienceDetails, error) {
	f.detailCalls.Add(1)
	f.mu.Lock()
	f.lastDetailID = id
	f.mu.Unlock()
	if f.panics {
		panic("adapter exploded")
	}
	if d, ok := f.details[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeAdapter) GetAvailability(_ context.Context, id string, _ model.Date) (model.Availability, error) {
	f.availCalls.Add(1)
	if f.availFn != nil {
		return f.availFn(id)
	}
	if a, ok := f.avail[id]; ok {
		return a, nil
	}
	return model.Unavailable(), nil
}

// fakeLocal adds Recognizes, view counting and related items to fakeAdapter.
type fakeLocal struct {
	*fakeAdapter
	recognizeErr error
	views        []string
	related      []model.Experience
	relatedErr   error
	relatedLimit int
}

func newFakeLocal(items ...model.Experience) *fakeLocal {
	return &fakeLocal{fakeAdapter: newFake(model.SourceLocal, items...)}
}

func (l *fakeLocal) Recognizes(_ context.Context, id string) (bool, error) {
	if l.recognizeErr != nil {
		return false, l.recognizeErr
	}
	_, ok := l.details[id]
	return ok, nil
}

func (l *fakeLocal) RecordView(_ context.Context, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.views = append(l.views, id)
}

func (l *fakeLocal) Related(_ context.Context, _ string, limit int) ([]model.Experience, error) {
	l.relatedLimit = limit
	return l.related, l.relatedErr
}

// recordingEmitter keeps emitted events in order.
type recordingEmitter struct {
	mu     sync.Mutex
	events []any
}

func (e *recordingEmitter) Emit(_ context.Context, event any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) failures() []model.ProviderFailedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []model.ProviderFailedEvent
	for _, ev := range e.events {
		if f, ok := ev.(model.ProviderFailedEvent); ok {
			out = append(out, f)
		}
	}
	return out
}

func (e *recordingEmitter) refreshes() []model.ListingRefreshedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []model.ListingRefreshedEvent
	for _, ev := range e.events {
		if r, ok := ev.(model.ListingRefreshedEvent); ok {
			out = append(out, r)
		}
	}
	return out
}

func localItem(id int64, title string) model.Experience {
	return model.Experience{
		ID:        id,
		Source:    model.SourceLocal,
		Slug:      model.Slugify(title),
		Title:     title,
		SellPrice: model.NewMoney("99.99", "USD"),
		BuyPrice:  model.NewMoney("79.99", "USD"),
		Language:  "en",
	}
}

func providerItem(src, nativeID, title string) model.Experience {
	return model.Experience{
		ID:         model.CanonicalID(nativeID),
		Source:     src,
		ProviderID: &nativeID,
		Slug:       model.Slugify(title),
		Title:      title,
		SellPrice:  model.NewMoney("100.00", "USD"),
		BuyPrice:   model.NewMoney("100.00", "USD"),
		Language:   "en",
	}
}
