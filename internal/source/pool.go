package source

// handlePool keeps idle reader handles so concurrent page reads each use
// their own handle.
type handlePool[T any] struct {
	open  func() (T, error)
	close func(T) error
	idle  chan T
}

func newHandlePool[T any](size int, open func() (T, error), close func(T) error) *handlePool[T] {
	if size < 1 {
		size = 1
	}
	return &handlePool[T]{open: open, close: close, idle: make(chan T, size)}
}

func (p *handlePool[T]) get() (T, error) {
	select {
	case h := <-p.idle:
		return h, nil
	default:
		return p.open()
	}
}

func (p *handlePool[T]) put(h T) {
	select {
	case p.idle <- h:
	default:
		_ = p.close(h)
	}
}

// drain closes every idle handle and returns the first error.
func (p *handlePool[T]) drain() error {
	var first error
	for {
		select {
		case h := <-p.idle:
			if err := p.close(h); err != nil && first == nil {
				first = err
			}
		default:
			return first
		}
	}
}
