package service

import "sync"

// Guard serializes access to a StudentService for hosts that call it from
// several goroutines. Every call into the store must go through Do.
type Guard struct {
	mu  sync.Mutex
	svc *StudentService
}

func NewGuard(svc *StudentService) *Guard {
	return &Guard{svc: svc}
}

// Do runs fn with exclusive access to the store.
func (g *Guard) Do(fn func(*StudentService) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.svc)
}
