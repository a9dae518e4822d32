package lib

import "sync"

type IModel interface {
	ID() string
}

// Collection is a concurrent-safe collection of items keyed by ID
type Collection[T IModel] struct {
	items sync.Map
}

func NewCollection[T IModel]() *Collection[T] {
	return &Collection[T]{
		items: sync.Map{},
	}
}

func (p *Collection[T]) Len() int {
	count := 0
	p.items.Range(func(key any, value any) bool {
		count++
		return true
	})
	return count
}

func (p *Collection[T]) Range(f func(item T) bool) {
	p.items.Range(func(key any, value any) bool {
		item := value.(T)
		return f(item)
	})
}

func (p *Collection[T]) Load(ID string) (item T, ok bool) {
	if val, ok := p.items.Load(ID); ok {
		return val.(T), true
	}
	return item, false
}

func (p *Collection[T]) Store(item T) {
	p.items.Store(item.ID(), item)
}

func (p *Collection[T]) Delete(ID string) {
	p.items.Delete(ID)
}
