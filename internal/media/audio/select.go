package audio

import (
	"strconv"
	"strings"

	"dubber/internal/language"
	"dubber/internal/media/ffprobe"
)

// Selection describes the source audio track chosen for dubbing.
type Selection struct {
	Stream ffprobe.Stream
	// AudioIndex is the zero-based position among audio streams, or -1 when
	// the container has no audio.
	AudioIndex int
	// LanguageMatched reports whether the track's language tag matched the
	// requested source language.
	LanguageMatched bool
}

// Found reports whether a track was selected.
func (s Selection) Found() bool { return s.AudioIndex >= 0 }

// MapSpecifier returns the ffmpeg -map value for the selected track.
func (s Selection) MapSpecifier() string {
	if s.AudioIndex < 0 {
		return "0:a:0"
	}
	return "0:a:" + strconv.Itoa(s.AudioIndex)
}

// Label returns a human-readable summary of the selected track.
func (s Selection) Label() string {
	if s.AudioIndex < 0 {
		return ""
	}
	return formatStreamSummary(s.Stream)
}

// Select picks the audio track to dub. Tracks whose language tag matches
// sourceLanguage win; untagged or mismatched tracks are considered only when
// no match exists. Ties are broken by default disposition, channel count,
// losslessness, then container order.
func Select(streams []ffprobe.Stream, sourceLanguage string) Selection {
	candidates := buildCandidates(streams, language.ToISO2(sourceLanguage))
	if len(candidates) == 0 {
		return Selection{AudioIndex: -1}
	}
	best := candidates[0]
	bestScore := score(best)
	for _, cand := range candidates[1:] {
		if s := score(cand); s > bestScore {
			best, bestScore = cand, s
		}
	}
	return Selection{Stream: best.stream, AudioIndex: best.order, LanguageMatched: best.matches}
}

type candidate struct {
	stream         ffprobe.Stream
	order          int
	matches        bool
	channels       int
	lossless       bool
	defaultFlagged bool
	commentary     bool
}

func buildCandidates(streams []ffprobe.Stream, want string) []candidate {
	result := make([]candidate, 0, len(streams))
	order := 0
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		cand := candidate{
			stream:         stream,
			order:          order,
			channels:       channelCount(stream),
			lossless:       detectLossless(stream),
			defaultFlagged: stream.Disposition["default"] == 1,
			commentary:     stream.Disposition["comment"] == 1 || strings.Contains(strings.ToLower(stream.Tags["title"]), "commentary"),
		}
		if want != "" {
			cand.matches = language.ToISO2(stream.Language()) == want
		}
		result = append(result, cand)
		order++
	}
	return result
}

func score(cand candidate) float64 {
	score := 0.0
	if cand.matches {
		score += 10000
	}
	if cand.commentary {
		score -= 5000
	}
	if cand.defaultFlagged {
		score += 1000
	}
	switch {
	case cand.channels >= 6:
		score += 300
	case cand.channels >= 2:
		score += 200
	default:
		score += 100
	}
	if cand.lossless {
		score += 50
	}
	return score - float64(cand.order)*0.1
}

func channelCount(stream ffprobe.Stream) int {
	if stream.Channels > 0 {
		return stream.Channels
	}
	layout := strings.ToLower(strings.TrimSpace(stream.ChannelLayout))
	switch {
	case strings.HasPrefix(layout, "7.1"):
		return 8
	case strings.HasPrefix(layout, "5.1"):
		return 6
	case strings.HasPrefix(layout, "stereo"), strings.HasPrefix(layout, "2.0"):
		return 2
	case strings.HasPrefix(layout, "mono"):
		return 1
	}
	return 0
}

func detectLossless(stream ffprobe.Stream) bool {
	name := strings.ToLower(stream.CodecName)
	switch name {
	case "truehd", "flac", "mlp", "alac":
		return true
	}
	if strings.HasPrefix(name, "pcm_") {
		return true
	}
	long := strings.ToLower(stream.CodecLong)
	return strings.Contains(long, "lossless") || strings.Contains(long, "master audio")
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := make([]string, 0, 4)
	if lang := stream.Language(); lang != "" {
		parts = append(parts, lang)
	}
	codec := stream.CodecLong
	if codec == "" {
		codec = stream.CodecName
	}
	if codec != "" {
		parts = append(parts, codec)
	}
	if stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(stream.Channels)+"ch")
	}
	if title := strings.TrimSpace(stream.Tags["title"]); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}
