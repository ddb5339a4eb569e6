package transcript

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

var (
	rangeLineRe = regexp.MustCompile(`^\[(\d{1,2}):(\d{2})\s*-\s*(\d{1,2}):(\d{2})\]\s*(.+)$`)
	vttCueRe    = regexp.MustCompile(`(\d{1,2}:)?(\d{1,2}):(\d{2})[.,](\d{3})\s*-->\s*(\d{1,2}:)?(\d{1,2}):(\d{2})[.,](\d{3})`)
	vttTagRe    = regexp.MustCompile(`<[^>]*>`)
	videoIDRe   = regexp.MustCompile(`(?:v=|youtu\.be/|/embed/|/shorts/)([A-Za-z0-9_-]{11})`)
)

// ExtractVideoID pulls the 11-character platform ID out of a video URL.
// Returns an empty string when the URL has no recognizable ID.
func ExtractVideoID(url string) string {
	m := videoIDRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseTimestamped parses model output in "[M:SS-M:SS] text" line format.
// Lines that do not match the pattern are skipped.
func ParseTimestamped(raw string) []core.TranscriptSegment {
	var segs []core.TranscriptSegment
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		m := rangeLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		start := atoi(m[1])*60 + atoi(m[2])
		end := atoi(m[3])*60 + atoi(m[4])
		text := strings.TrimSpace(m[5])
		if text == "" || end < start {
			continue
		}
		segs = append(segs, core.TranscriptSegment{
			Start: float64(start),
			End:   float64(end),
			Text:  text,
		})
	}
	return segs
}

// ParseVTTFile reads a WebVTT subtitle file and returns its cues as
// transcript segments. Consecutive cues with identical text are merged,
// which collapses the rolling duplicates auto-generated tracks produce.
func ParseVTTFile(path string) ([]core.TranscriptSegment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var segs []core.TranscriptSegment
	var cur *core.TranscriptSegment
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if m := vttCueRe.FindStringSubmatch(line); m != nil {
			if cur != nil && cur.Text != "" {
				segs = appendMerged(segs, *cur)
			}
			cur = &core.TranscriptSegment{
				Start: vttSeconds(m[1], m[2], m[3], m[4]),
				End:   vttSeconds(m[5], m[6], m[7], m[8]),
			}
			continue
		}
		if cur == nil || line == "" || line == "WEBVTT" ||
			strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "Kind:") ||
			strings.HasPrefix(line, "Language:") {
			continue
		}
		text := strings.TrimSpace(vttTagRe.ReplaceAllString(line, ""))
		if text == "" {
			continue
		}
		if cur.Text != "" {
			cur.Text += " "
		}
		cur.Text += text
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil && cur.Text != "" {
		segs = appendMerged(segs, *cur)
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("no cues in %s", path)
	}
	return segs, nil
}

func appendMerged(segs []core.TranscriptSegment, s core.TranscriptSegment) []core.TranscriptSegment {
	if n := len(segs); n > 0 && segs[n-1].Text == s.Text {
		segs[n-1].End = s.End
		return segs
	}
	return append(segs, s)
}

func vttSeconds(h, m, s, ms string) float64 {
	hours := 0
	if h != "" {
		hours = atoi(strings.TrimSuffix(h, ":"))
	}
	return float64(hours*3600+atoi(m)*60+atoi(s)) + float64(atoi(ms))/1000
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
