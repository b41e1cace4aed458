package surface

// listeners is a list of callbacks that can be removed individually.
type listeners[T any] struct {
	next int
	fns  []listener[T]
}

type listener[T any] struct {
	id int
	fn func(T)
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.next++
	id := l.next
	l.fns = append(l.fns, listener[T]{id: id, fn: fn})
	return func() {
		for i, x := range l.fns {
			if x.id == id {
				l.fns = append(l.fns[:i:i], l.fns[i+1:]...)
				return
			}
		}
	}
}

// emit calls every callback registered at the time of the call.
func (l *listeners[T]) emit(v T) {
	fns := l.fns
	for _, x := range fns {
		x.fn(v)
	}
}
