package events

import (
	"context"
	"reflect"
	"sync"
)

// Handler handles one published event.
type Handler func(event any)

// Emitter is the write side used by components that report events.
type Emitter interface {
	Emit(ctx context.Context, event any)
}

// Bus provides in-process pub/sub keyed by the event's dynamic type.
// Pointer and value forms of the same type reach the same subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]Handler
	wg       sync.WaitGroup
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]Handler)}
}

// Subscribe registers handler for the type of sample, e.g.
// Subscribe(model.ProviderFailedEvent{}, h). Handlers always receive the
// value form.
func (b *Bus) Subscribe(sample any, handler Handler) {
	t := baseType(reflect.TypeOf(sample))
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], handler)
}

// Emit delivers event asynchronously. The context is not used for
// delivery; it exists so emitters can be swapped for synchronous ones.
func (b *Bus) Emit(_ context.Context, event any) {
	b.Publish(event)
}

// Publish delivers event to every subscriber on its own goroutine.
func (b *Bus) Publish(event any) {
	value, handlers := b.lookup(event)
	for _, h := range handlers {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			h(value)
		}(h)
	}
}

// PublishSync delivers event on the caller's goroutine.
func (b *Bus) PublishSync(event any) {
	value, handlers := b.lookup(event)
	for _, h := range handlers {
		h(value)
	}
}

// Wait blocks until all asynchronous deliveries have returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// SubscriberCount returns the number of subscribers for the type of sample.
func (b *Bus) SubscriberCount(sample any) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[baseType(reflect.TypeOf(sample))])
}

func (b *Bus) lookup(event any) (any, []Handler) {
	if event == nil {
		return nil, nil
	}
	v := reflect.ValueOf(event)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := b.handlers[v.Type()]
	if len(hs) == 0 {
		return nil, nil
	}
	return v.Interface(), append([]Handler(nil), hs...)
}

func baseType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Ptr {
		return t.Elem()
	}
	return t
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, any) {}
