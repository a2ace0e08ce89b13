package subtitles

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dubber/internal/timeline"
)

// Cue is one numbered subtitle entry.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm, truncating to the
// millisecond. Negative values render as zero.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	totalMillis := int64(math.Floor(seconds*1000 + 1e-6))
	hours := totalMillis / 3_600_000
	totalMillis %= 3_600_000
	minutes := totalMillis / 60_000
	totalMillis %= 60_000
	secs := totalMillis / 1000
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// CuesFromSegments converts segments to cues numbered from 1 in order.
func CuesFromSegments(segments []timeline.Segment) []Cue {
	cues := make([]Cue, 0, len(segments))
	for i, seg := range segments {
		cues = append(cues, Cue{Index: i + 1, Start: seg.Start, End: seg.End, Text: cueText(seg.Text)})
	}
	return cues
}

// cueText trims each line and drops blank ones. A blank line ends an SRT
// block, so it must never appear inside cue text.
func cueText(text string) string {
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Render produces SRT content for cues.
func Render(cues []Cue) []byte {
	var buf bytes.Buffer
	for _, cue := range cues {
		buf.WriteString(strconv.Itoa(cue.Index))
		buf.WriteByte('\n')
		buf.WriteString(FormatTimestamp(cue.Start))
		buf.WriteString(" --> ")
		buf.WriteString(FormatTimestamp(cue.End))
		buf.WriteByte('\n')
		buf.WriteString(cue.Text)
		buf.WriteString("\n\n")
	}
	return buf.Bytes()
}

// Write renders segments to path atomically and returns the cue count.
func Write(path string, segments []timeline.Segment) (int, error) {
	cues := CuesFromSegments(segments)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("ensure subtitle dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".srt-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create subtitle temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(Render(cues)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write subtitles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("close subtitles: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("chmod subtitles: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("move subtitles into place: %w", err)
	}
	return len(cues), nil
}

// Parse reads SRT content into cues. Credit cues are removed and blocks
// without a valid timing line are skipped. Cues are renumbered from 1.
func Parse(data []byte) ([]Cue, error) {
	blocks, _ := dropCredits(readBlocks(string(data)))
	cues := make([]Cue, 0, len(blocks))
	for _, b := range blocks {
		timing := b.timing()
		if timing < 0 {
			continue
		}
		start, end, err := parseTimingLine(b.lines[timing])
		if err != nil {
			return nil, err
		}
		cues = append(cues, Cue{Index: len(cues) + 1, Start: start, End: end, Text: strings.Join(b.text(), " ")})
	}
	return cues, nil
}

// ParseFile reads and parses an SRT file.
func ParseFile(path string) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	return Parse(data)
}

// Segments converts cues back to transcription segments.
func Segments(cues []Cue) []timeline.Segment {
	out := make([]timeline.Segment, 0, len(cues))
	for _, cue := range cues {
		out = append(out, timeline.Segment{Start: cue.Start, End: cue.End, Text: cue.Text})
	}
	return out
}

func parseTimingLine(line string) (float64, float64, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	start, err := parseSRTTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	// Drop position hints such as "X1:40" that may follow the end time.
	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	end, err := parseSRTTimestamp(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseSRTTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}
