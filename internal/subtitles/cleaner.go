package subtitles

import (
	"regexp"
	"strconv"
	"strings"
)

// creditPatterns match subtitle-site credits and links. Those cues carry no
// dialogue and would otherwise be spoken by the dub.
var creditPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)opensubtitles`),
	regexp.MustCompile(`(?i)(subtitles?|captions?|transcript(ion)?s?) by`),
	regexp.MustCompile(`(?i)synced? (and|&) corrected`),
	regexp.MustCompile(`(?i)https?://`),
	regexp.MustCompile(`(?i)\bwww\.`),
}

// block is one SRT entry as raw lines with trailing whitespace removed.
type block struct {
	lines []string
}

var blockSeparator = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)*`)

// readBlocks splits SRT content on blank lines. A leading byte order mark is
// ignored and CRLF or CR line endings are accepted.
func readBlocks(content string) []block {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(content)
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	parts := blockSeparator.Split(content, -1)
	blocks := make([]block, 0, len(parts))
	for _, part := range parts {
		lines := strings.Split(part, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimRight(line, " \t")
		}
		blocks = append(blocks, block{lines: lines})
	}
	return blocks
}

// timing returns the index of the first "-->" line, or -1.
func (b block) timing() int {
	for i, line := range b.lines {
		if strings.Contains(line, "-->") {
			return i
		}
	}
	return -1
}

// text returns the trimmed, non-empty lines after the numbering and timing.
func (b block) text() []string {
	start := b.timing() + 1
	if start == 0 && len(b.lines) > 0 {
		if _, err := strconv.Atoi(strings.TrimSpace(b.lines[0])); err == nil {
			start = 1
		}
	}
	out := make([]string, 0, len(b.lines)-start)
	for _, line := range b.lines[start:] {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (b block) isCredit() bool {
	payload := strings.Join(b.text(), " ")
	if payload == "" {
		return false
	}
	for _, pattern := range creditPatterns {
		if pattern.MatchString(payload) {
			return true
		}
	}
	return false
}

// dropCredits filters credit cues and reports how many were removed.
func dropCredits(blocks []block) ([]block, int) {
	kept := blocks[:0:0]
	for _, b := range blocks {
		if !b.isCredit() {
			kept = append(kept, b)
		}
	}
	return kept, len(blocks) - len(kept)
}

// CleanSRT normalizes SRT content for use as a segment source and strips
// credit cues so they are never synthesized. It returns the cleaned content
// and the number of cues removed.
func CleanSRT(raw []byte) ([]byte, int) {
	blocks, removed := dropCredits(readBlocks(string(raw)))
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.Join(b.lines, "\n"))
	}
	sb.WriteByte('\n')
	return []byte(sb.String()), removed
}
