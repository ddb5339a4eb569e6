// Package store persists videos and their derived entities. Transcript
// segments, sections and frames are replaced as whole collections, never
// patched in place; deleting a video cascades to everything it owns.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// Repository is the persistence capability consumed by the engines.
type Repository interface {
	CreateVideo(ctx context.Context, v *core.VideoAsset) error
	GetVideo(ctx context.Context, id string) (*core.VideoAsset, error)
	ListVideos(ctx context.Context) ([]core.VideoAsset, error)
	UpdateVideo(ctx context.Context, v *core.VideoAsset) error
	DeleteVideo(ctx context.Context, id string) error

	ReplaceSegments(ctx context.Context, videoID string, segs []core.TranscriptSegment) error
	Segments(ctx context.Context, videoID string) ([]core.TranscriptSegment, error)

	ReplaceSections(ctx context.Context, videoID string, sections []core.Section) error
	Sections(ctx context.Context, videoID string) ([]core.Section, error)

	ReplaceFrames(ctx context.Context, videoID string, frames []core.Frame) error
	Frames(ctx context.Context, videoID string) ([]core.Frame, error)

	SaveConversation(ctx context.Context, c *core.Conversation) error
	GetConversation(ctx context.Context, id string) (*core.Conversation, error)
}

// MemoryRepository keeps everything in process memory. It backs tests and
// the default zero-configuration setup.
type MemoryRepository struct {
	mu            sync.RWMutex
	videos        map[string]core.VideoAsset
	segments      map[string][]core.TranscriptSegment
	sections      map[string][]core.Section
	frames        map[string][]core.Frame
	conversations map[string]core.Conversation
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		videos:        map[string]core.VideoAsset{},
		segments:      map[string][]core.TranscriptSegment{},
		sections:      map[string][]core.Section{},
		frames:        map[string][]core.Frame{},
		conversations: map[string]core.Conversation{},
	}
}

func (r *MemoryRepository) CreateVideo(_ context.Context, v *core.VideoAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[v.ID] = *v
	return nil
}

func (r *MemoryRepository) GetVideo(_ context.Context, id string) (*core.VideoAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, core.NewError(core.KindNotFound, "video %s not found", id)
	}
	out := v
	return &out, nil
}

func (r *MemoryRepository) ListVideos(_ context.Context) ([]core.VideoAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.VideoAsset, 0, len(r.videos))
	for _, v := range r.videos {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateVideo(_ context.Context, v *core.VideoAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[v.ID]; !ok {
		return core.NewError(core.KindNotFound, "video %s not found", v.ID)
	}
	r.videos[v.ID] = *v
	return nil
}

func (r *MemoryRepository) DeleteVideo(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[id]; !ok {
		return core.NewError(core.KindNotFound, "video %s not found", id)
	}
	delete(r.videos, id)
	delete(r.segments, id)
	delete(r.sections, id)
	delete(r.frames, id)
	for cid, c := range r.conversations {
		if c.VideoID == id {
			delete(r.conversations, cid)
		}
	}
	return nil
}

func (r *MemoryRepository) ReplaceSegments(_ context.Context, videoID string, segs []core.TranscriptSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]core.TranscriptSegment, len(segs))
	copy(cp, segs)
	r.segments[videoID] = cp
	return nil
}

func (r *MemoryRepository) Segments(_ context.Context, videoID string) ([]core.TranscriptSegment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	segs := r.segments[videoID]
	out := make([]core.TranscriptSegment, len(segs))
	copy(out, segs)
	return out, nil
}

func (r *MemoryRepository) ReplaceSections(_ context.Context, videoID string, sections []core.Section) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]core.Section, len(sections))
	copy(cp, sections)
	r.sections[videoID] = cp
	return nil
}

func (r *MemoryRepository) Sections(_ context.Context, videoID string) ([]core.Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	secs := r.sections[videoID]
	out := make([]core.Section, len(secs))
	copy(out, secs)
	return out, nil
}

func (r *MemoryRepository) ReplaceFrames(_ context.Context, videoID string, frames []core.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]core.Frame, len(frames))
	copy(cp, frames)
	r.frames[videoID] = cp
	return nil
}

func (r *MemoryRepository) Frames(_ context.Context, videoID string) ([]core.Frame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	frames := r.frames[videoID]
	out := make([]core.Frame, len(frames))
	copy(out, frames)
	return out, nil
}

func (r *MemoryRepository) SaveConversation(_ context.Context, c *core.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	cp.Turns = make([]core.Turn, len(c.Turns))
	copy(cp.Turns, c.Turns)
	r.conversations[c.ID] = cp
	return nil
}

func (r *MemoryRepository) GetConversation(_ context.Context, id string) (*core.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, core.NewError(core.KindNotFound, "conversation %s not found", id)
	}
	out := c
	out.Turns = make([]core.Turn, len(c.Turns))
	copy(out.Turns, c.Turns)
	return &out, nil
}
