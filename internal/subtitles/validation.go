package subtitles

import (
	"fmt"
	"os"
)

// durationToleranceSeconds is the slack allowed between the last cue and the
// audio duration.
const durationToleranceSeconds = 1.0

// ValidateFile checks a written SRT file. It returns a list of issues; an
// empty list means validation passed. expectedCues < 0 skips the count
// check and audioSeconds <= 0 skips the duration check.
func ValidateFile(path string, expectedCues int, audioSeconds float64) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("read_error: %v", err)}
	}
	return ValidateContent(data, expectedCues, audioSeconds)
}

// ValidateContent applies ValidateFile's checks to in-memory content.
func ValidateContent(data []byte, expectedCues int, audioSeconds float64) []string {
	var issues []string
	blocks := readBlocks(string(data))
	if expectedCues >= 0 && len(blocks) != expectedCues {
		issues = append(issues, fmt.Sprintf("cue_count_mismatch: got=%d want=%d", len(blocks), expectedCues))
	}
	var prevStart, last float64
	for i, b := range blocks {
		lines := b.lines
		if len(lines) < 2 {
			issues = append(issues, fmt.Sprintf("cue_%d_incomplete", i+1))
			continue
		}
		if lines[0] != fmt.Sprint(i+1) {
			issues = append(issues, fmt.Sprintf("cue_%d_numbering: got=%q", i+1, lines[0]))
		}
		start, end, err := parseTimingLine(lines[1])
		if err != nil {
			issues = append(issues, fmt.Sprintf("cue_%d_timestamp: %v", i+1, err))
			continue
		}
		if end < start {
			issues = append(issues, fmt.Sprintf("cue_%d_negative_duration", i+1))
		}
		if start < prevStart {
			issues = append(issues, fmt.Sprintf("cue_%d_out_of_order", i+1))
		}
		prevStart = start
		if end > last {
			last = end
		}
	}
	if audioSeconds > 0 && last > audioSeconds+durationToleranceSeconds {
		issues = append(issues, fmt.Sprintf("duration_mismatch: last_cue=%.3fs audio=%.3fs", last, audioSeconds))
	}
	return issues
}
