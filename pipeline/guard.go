package pipeline

import (
	"sync"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// Guard prevents concurrent processing runs for the same video.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{inFlight: map[string]struct{}{}}
}

// Acquire reserves the video for processing. The second concurrent caller
// gets an already-processing error.
func (g *Guard) Acquire(videoID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[videoID]; busy {
		return core.NewError(core.KindAlreadyProcessing, "video %s is already being processed", videoID)
	}
	g.inFlight[videoID] = struct{}{}
	return nil
}

// Release frees the reservation. Safe to call for a video that was never
// acquired.
func (g *Guard) Release(videoID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, videoID)
}
