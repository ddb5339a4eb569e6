package transcript

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		url, want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/video.mp4", ""},
		{"/tmp/local.mp4", ""},
	}
	for _, c := range cases {
		if got := ExtractVideoID(c.url); got != c.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestParseTimestamped(t *testing.T) {
	raw := `Here is the transcript:
[0:00-0:12] Welcome to the channel.
[0:12-1:05] Today we cover goroutines.
not a transcript line
[1:05-1:00] end before start, skipped
[1:05-2:30] And channels.`
	segs := ParseTimestamped(raw)
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if segs[0].Start != 0 || segs[0].End != 12 {
		t.Errorf("first segment span = [%v, %v], want [0, 12]", segs[0].Start, segs[0].End)
	}
	if segs[1].Text != "Today we cover goroutines." {
		t.Errorf("second segment text = %q", segs[1].Text)
	}
	if segs[2].Start != 65 || segs[2].End != 150 {
		t.Errorf("third segment span = [%v, %v], want [65, 150]", segs[2].Start, segs[2].End)
	}
}

func TestParseTimestampedEmptyInput(t *testing.T) {
	if segs := ParseTimestamped("no timestamps here"); len(segs) != 0 {
		t.Errorf("got %d segments, want 0", len(segs))
	}
}

const sampleVTT = `WEBVTT
Kind: captions
Language: en

00:00:00.000 --> 00:00:03.500
Welcome <c>everyone</c> to the talk.

00:00:03.500 --> 00:00:07.000
Welcome <c>everyone</c> to the talk.

00:00:07.000 --> 00:01:10.250
Let's start with the basics.
`

func TestParseVTTFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions.vtt")
	if err := os.WriteFile(path, []byte(sampleVTT), 0644); err != nil {
		t.Fatal(err)
	}
	segs, err := ParseVTTFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// The duplicated rolling cue merges into one segment.
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2: %+v", len(segs), segs)
	}
	if segs[0].Text != "Welcome everyone to the talk." {
		t.Errorf("first text = %q", segs[0].Text)
	}
	if segs[0].Start != 0 || segs[0].End != 7 {
		t.Errorf("merged span = [%v, %v], want [0, 7]", segs[0].Start, segs[0].End)
	}
	if segs[1].End != 70.25 {
		t.Errorf("second end = %v, want 70.25", segs[1].End)
	}
}

func TestParseVTTFileNoCues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.vtt")
	if err := os.WriteFile(path, []byte("WEBVTT\n\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseVTTFile(path); err == nil {
		t.Error("expected an error for a cueless file")
	}
}
