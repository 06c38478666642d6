package feedback

import "sync"

// Guard admits at most one outstanding evaluation per interview id.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// Acquire claims interviewID. It returns false if another evaluation holds
// it; otherwise the caller must call release when done.
func (g *Guard) Acquire(interviewID string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[interviewID]; busy {
		return nil, false
	}
	g.inFlight[interviewID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, interviewID)
			g.mu.Unlock()
		})
	}, true
}

