package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"dubber/internal/services"
)

// Mix policies decide the mixed clip length when the synthesized speech and
// the original slice differ in duration.
const (
	PolicyFirst   = "first"
	PolicyLongest = "longest"
	PolicyStretch = "stretch"
)

// maxAtempoStep is the largest factor a single atempo instance accepts on
// older ffmpeg builds.
const maxAtempoStep = 2.0

// OverlayOptions tunes Overlay.
type OverlayOptions struct {
	// Policy is one of PolicyFirst, PolicyLongest, PolicyStretch.
	Policy string
	// Tempo speeds up the foreground when Policy is PolicyStretch. Values
	// <= 1 leave it untouched.
	Tempo float64
}

// BuildOverlayFilter renders the filter_complex graph for opts. Input 0 is
// the attenuated original, input 1 the synthesized speech; the result is
// labeled [mix].
func BuildOverlayFilter(opts OverlayOptions) (string, error) {
	policy := strings.ToLower(strings.TrimSpace(opts.Policy))
	if policy == "" {
		policy = PolicyFirst
	}
	duration := "first"
	fg := []string{}
	switch policy {
	case PolicyFirst:
	case PolicyLongest:
		duration = "longest"
	case PolicyStretch:
		fg = append(fg, AtempoChain(opts.Tempo)...)
	default:
		return "", services.Wrap(services.ErrValidation, stage, "overlay", fmt.Sprintf("Unknown mix policy %q", opts.Policy), nil)
	}
	fg = append(fg,
		"aresample="+strconv.Itoa(CanonicalSampleRate),
		"aformat=channel_layouts=stereo",
	)
	return fmt.Sprintf("[1:a]%s[fg];[0:a][fg]amix=inputs=2:duration=%s:dropout_transition=2[mix]",
		strings.Join(fg, ","), duration), nil
}

// AtempoChain splits tempo into atempo filters no larger than 2.0 each.
// Tempo values <= 1 produce no filters.
func AtempoChain(tempo float64) []string {
	if tempo <= 1 {
		return nil
	}
	var chain []string
	for tempo > maxAtempoStep {
		chain = append(chain, "atempo="+strconv.FormatFloat(maxAtempoStep, 'f', -1, 64))
		tempo /= maxAtempoStep
	}
	return append(chain, "atempo="+strconv.FormatFloat(tempo, 'f', 4, 64))
}

// StretchTempo returns the speed-up needed to fit synthesized audio into
// the slice, capped at maxTempo. Inputs that already fit return 1.
func StretchTempo(synthesized, slice, maxTempo float64) float64 {
	if synthesized <= 0 || slice <= 0 || synthesized <= slice {
		return 1
	}
	ratio := synthesized / slice
	if maxTempo >= 1 && ratio > maxTempo {
		ratio = maxTempo
	}
	return ratio
}
