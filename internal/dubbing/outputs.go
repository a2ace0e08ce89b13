package dubbing

import (
	"path/filepath"
	"strings"
)

// videoContainers are output extensions that receive a remuxed video.
var videoContainers = map[string]struct{}{
	".mp4":  {},
	".m4v":  {},
	".mkv":  {},
	".mov":  {},
	".webm": {},
	".avi":  {},
	".ts":   {},
}

// Outputs are the artifact paths derived from the requested output path.
type Outputs struct {
	Audio     string
	Video     string
	Subtitles string
	Lock      string
}

// DeriveOutputs maps output "dir/name.ext" to dir/name_dubbed.wav,
// dir/name_dubbed.ext and dir/name.srt. An explicit subtitle path wins.
// Video is empty when ext is not a video container.
func DeriveOutputs(output, subtitle string) Outputs {
	output = filepath.Clean(strings.TrimSpace(output))
	ext := filepath.Ext(output)
	base := strings.TrimSuffix(output, ext)

	out := Outputs{
		Audio:     base + "_dubbed.wav",
		Subtitles: base + ".srt",
		Lock:      base + ".lock",
	}
	if _, ok := videoContainers[strings.ToLower(ext)]; ok {
		out.Video = base + "_dubbed" + ext
	}
	if s := strings.TrimSpace(subtitle); s != "" {
		out.Subtitles = s
	}
	return out
}
