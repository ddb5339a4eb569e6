package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// Both repository implementations run the same suite.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	sqlite, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": sqlite,
	}
}

func newVideo(id string) *core.VideoAsset {
	return &core.VideoAsset{
		ID:        id,
		URL:       "https://example.com/" + id,
		Title:     "Video " + id,
		Duration:  120,
		Status:    core.StatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestVideoCRUD(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := repo.CreateVideo(ctx, newVideo("v1")); err != nil {
				t.Fatal(err)
			}
			got, err := repo.GetVideo(ctx, "v1")
			if err != nil {
				t.Fatal(err)
			}
			if got.URL != "https://example.com/v1" || got.Duration != 120 {
				t.Errorf("round trip mismatch: %+v", got)
			}

			got.Status = core.StatusAcquired
			got.Duration = 300
			if err := repo.UpdateVideo(ctx, got); err != nil {
				t.Fatal(err)
			}
			updated, err := repo.GetVideo(ctx, "v1")
			if err != nil {
				t.Fatal(err)
			}
			if updated.Status != core.StatusAcquired || updated.Duration != 300 {
				t.Errorf("update not persisted: %+v", updated)
			}

			if _, err := repo.GetVideo(ctx, "missing"); !core.IsKind(err, core.KindNotFound) {
				t.Errorf("missing video: kind = %q, want not_found", core.ErrKind(err))
			}
			if err := repo.UpdateVideo(ctx, newVideo("missing")); !core.IsKind(err, core.KindNotFound) {
				t.Errorf("update missing: kind = %q, want not_found", core.ErrKind(err))
			}
		})
	}
}

func TestListVideosOrdered(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, id := range []string{"a", "b", "c"} {
				v := newVideo(id)
				v.CreatedAt = time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
				if err := repo.CreateVideo(ctx, v); err != nil {
					t.Fatal(err)
				}
			}
			videos, err := repo.ListVideos(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(videos) != 3 {
				t.Fatalf("got %d videos, want 3", len(videos))
			}
			for i, want := range []string{"a", "b", "c"} {
				if videos[i].ID != want {
					t.Errorf("videos[%d] = %q, want %q", i, videos[i].ID, want)
				}
			}
		})
	}
}

func TestReplaceSegmentsIsAtomicSwap(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := repo.CreateVideo(ctx, newVideo("v1")); err != nil {
				t.Fatal(err)
			}
			first := []core.TranscriptSegment{
				{Start: 0, End: 10, Text: "old one"},
				{Start: 10, End: 20, Text: "old two"},
				{Start: 20, End: 30, Text: "old three"},
			}
			if err := repo.ReplaceSegments(ctx, "v1", first); err != nil {
				t.Fatal(err)
			}
			second := []core.TranscriptSegment{{Start: 0, End: 60, Text: "new"}}
			if err := repo.ReplaceSegments(ctx, "v1", second); err != nil {
				t.Fatal(err)
			}
			got, err := repo.Segments(ctx, "v1")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].Text != "new" {
				t.Errorf("replace left stale rows: %+v", got)
			}
		})
	}
}

func TestSegmentsPreserveOrder(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := repo.CreateVideo(ctx, newVideo("v1")); err != nil {
				t.Fatal(err)
			}
			segs := []core.TranscriptSegment{
				{Start: 0, End: 10, Text: "one"},
				{Start: 10, End: 20, Text: "two"},
				{Start: 20, End: 30, Text: "three"},
			}
			if err := repo.ReplaceSegments(ctx, "v1", segs); err != nil {
				t.Fatal(err)
			}
			got, err := repo.Segments(ctx, "v1")
			if err != nil {
				t.Fatal(err)
			}
			for i := range segs {
				if got[i].Text != segs[i].Text {
					t.Errorf("segment %d = %q, want %q", i, got[i].Text, segs[i].Text)
				}
			}
		})
	}
}

func TestSectionsAndFramesRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := repo.CreateVideo(ctx, newVideo("v1")); err != nil {
				t.Fatal(err)
			}
			secs := []core.Section{
				{Title: "Intro", Start: 0, End: 120},
				{Title: "Main", Start: 120, End: 300},
			}
			if err := repo.ReplaceSections(ctx, "v1", secs); err != nil {
				t.Fatal(err)
			}
			gotSecs, err := repo.Sections(ctx, "v1")
			if err != nil {
				t.Fatal(err)
			}
			if len(gotSecs) != 2 || gotSecs[1].Title != "Main" {
				t.Errorf("sections = %+v", gotSecs)
			}

			fs := []core.Frame{
				{Timestamp: 0, Path: "/data/v1/frames/frame_00001.jpg", Context: "hello"},
				{Timestamp: 10, Path: "/data/v1/frames/frame_00002.jpg"},
			}
			if err := repo.ReplaceFrames(ctx, "v1", fs); err != nil {
				t.Fatal(err)
			}
			gotFrames, err := repo.Frames(ctx, "v1")
			if err != nil {
				t.Fatal(err)
			}
			if len(gotFrames) != 2 || gotFrames[0].Context != "hello" || gotFrames[1].Context != "" {
				t.Errorf("frames = %+v", gotFrames)
			}
		})
	}
}

func TestDeleteVideoCascades(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := repo.CreateVideo(ctx, newVideo("v1")); err != nil {
				t.Fatal(err)
			}
			if err := repo.ReplaceSegments(ctx, "v1", []core.TranscriptSegment{{Start: 0, End: 5, Text: "x"}}); err != nil {
				t.Fatal(err)
			}
			if err := repo.ReplaceSections(ctx, "v1", []core.Section{{Title: "T", Start: 0, End: 5}}); err != nil {
				t.Fatal(err)
			}
			if err := repo.ReplaceFrames(ctx, "v1", []core.Frame{{Timestamp: 0, Path: "p"}}); err != nil {
				t.Fatal(err)
			}
			if err := repo.SaveConversation(ctx, &core.Conversation{ID: "c1", VideoID: "v1"}); err != nil {
				t.Fatal(err)
			}

			if err := repo.DeleteVideo(ctx, "v1"); err != nil {
				t.Fatal(err)
			}
			if segs, _ := repo.Segments(ctx, "v1"); len(segs) != 0 {
				t.Error("segments survived the cascade")
			}
			if secs, _ := repo.Sections(ctx, "v1"); len(secs) != 0 {
				t.Error("sections survived the cascade")
			}
			if fs, _ := repo.Frames(ctx, "v1"); len(fs) != 0 {
				t.Error("frames survived the cascade")
			}
			if _, err := repo.GetConversation(ctx, "c1"); !core.IsKind(err, core.KindNotFound) {
				t.Error("conversation survived the cascade")
			}
		})
	}
}

func TestConversationRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := repo.CreateVideo(ctx, newVideo("v1")); err != nil {
				t.Fatal(err)
			}
			conv := &core.Conversation{
				ID:      "c1",
				VideoID: "v1",
				Turns: []core.Turn{{
					Question:  "what happens at the start?",
					Answer:    "an introduction",
					Citations: []core.Citation{{Timestamp: 0, Text: "welcome"}},
					CreatedAt: time.Now().UTC().Truncate(time.Second),
				}},
			}
			if err := repo.SaveConversation(ctx, conv); err != nil {
				t.Fatal(err)
			}

			conv.Turns = append(conv.Turns, core.Turn{Question: "and then?", Answer: "the main part"})
			if err := repo.SaveConversation(ctx, conv); err != nil {
				t.Fatal(err)
			}

			got, err := repo.GetConversation(ctx, "c1")
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Turns) != 2 {
				t.Fatalf("got %d turns, want 2", len(got.Turns))
			}
			if got.Turns[0].Citations[0].Timestamp != 0 || got.Turns[0].Citations[0].Text != "welcome" {
				t.Errorf("citations lost: %+v", got.Turns[0])
			}
		})
	}
}
