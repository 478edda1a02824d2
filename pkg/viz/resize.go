package viz

import (
	"math"
	"sync"

	"github.com/matzehuels/pdaviz/pkg/core/layout"
)

// Canvas insets subtracted from the container.
const (
	HorizontalInset = 20
	VerticalInset   = 25
)

// DefaultContainer is the container size assumed before the first resize.
var DefaultContainer = layout.Size{Width: 1280, Height: 800}

// CanvasSize returns the drawable canvas for a container: the container
// minus the horizontal inset, and minus the control bar plus the vertical
// inset. Negative results clamp to zero.
func CanvasSize(container layout.Size, controlBar float64) layout.Size {
	return layout.Size{
		Width:  math.Max(0, container.Width-HorizontalInset),
		Height: math.Max(0, container.Height-(controlBar+VerticalInset)),
	}
}

// ResizeService fans container resizes out to subscribers.
type ResizeService struct {
	mu   sync.Mutex
	size layout.Size
	subs map[uint64]func(layout.Size)
	next uint64
}

// NewResizeService returns a service with the given initial container size.
func NewResizeService(initial layout.Size) *ResizeService {
	return &ResizeService{size: initial, subs: make(map[uint64]func(layout.Size))}
}

var (
	defaultResize     *ResizeService
	defaultResizeOnce sync.Once
)

// DefaultResizeService returns the process-wide service.
func DefaultResizeService() *ResizeService {
	defaultResizeOnce.Do(func() {
		defaultResize = NewResizeService(DefaultContainer)
	})
	return defaultResize
}

// Subscribe registers fn for future resizes and returns a function that
// removes it. Calling the returned function more than once is harmless.
func (s *ResizeService) Subscribe(fn func(container layout.Size)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Resize records the new container size and notifies every subscriber.
// Subscribers run outside the service lock, in no particular order.
func (s *ResizeService) Resize(container layout.Size) {
	s.mu.Lock()
	s.size = container
	fns := make([]func(layout.Size), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(container)
	}
}

// Size returns the last container size.
func (s *ResizeService) Size() layout.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Subscribers returns the number of live subscriptions.
func (s *ResizeService) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
