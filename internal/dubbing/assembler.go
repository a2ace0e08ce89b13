package dubbing

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"dubber/internal/logging"
	"dubber/internal/media/ffmpeg"
	"dubber/internal/services"
	"dubber/internal/timeline"
)

const assembleStage = "assemble"

// Assembler joins rendered clips into one track.
type Assembler struct {
	media  Media
	prober Prober
	logger *slog.Logger
}

// NewAssembler builds an Assembler.
func NewAssembler(media Media, prober Prober, logger *slog.Logger) *Assembler {
	return &Assembler{
		media:  media,
		prober: prober,
		logger: logging.NewComponentLogger(logger, "assembler"),
	}
}

// Assemble verifies clip order and format, then concatenates the clips into
// dest. dest only appears once the whole track has been written.
func (a *Assembler) Assemble(ctx context.Context, run *Run, clips []ProcessedClip, dest string) error {
	ctx = services.WithStage(ctx, assembleStage)
	logger := logging.WithContext(ctx, a.logger)

	if err := CheckOrder(clips); err != nil {
		return err
	}
	if err := a.checkFormats(ctx, clips); err != nil {
		return err
	}

	paths := make([]string, len(clips))
	for i, clip := range clips {
		paths[i] = clip.Path
	}
	if err := a.media.Concatenate(ctx, paths, run.Path("concat.txt"), dest); err != nil {
		return err
	}
	logger.Info("track assembled",
		logging.Int("clips", len(clips)),
		logging.String("dest", dest),
		logging.String(logging.FieldEventType, "track_assembled"),
	)
	return nil
}

// CheckOrder reports an ErrValidation when clips are not in strictly
// increasing start order or leave gaps between neighbours.
func CheckOrder(clips []ProcessedClip) error {
	if len(clips) == 0 {
		return services.Wrap(services.ErrValidation, assembleStage, "check order", "No clips to assemble", nil)
	}
	for i, clip := range clips {
		if clip.Path == "" {
			return services.Wrap(services.ErrValidation, assembleStage, "check order",
				fmt.Sprintf("Clip %d was never rendered", i), nil)
		}
		if i == 0 {
			continue
		}
		prev := clips[i-1].Interval
		cur := clip.Interval
		if cur.Start <= prev.Start {
			return services.Wrap(services.ErrValidation, assembleStage, "check order",
				fmt.Sprintf("Clip %d starts at %.3f, not after clip %d at %.3f", i, cur.Start, i-1, prev.Start), nil)
		}
		if math.Abs(cur.Start-prev.End) > timeline.Tolerance {
			return services.Wrap(services.ErrValidation, assembleStage, "check order",
				fmt.Sprintf("Gap between clip %d ending %.6f and clip %d starting %.6f", i-1, prev.End, i, cur.Start), nil)
		}
	}
	return nil
}

func (a *Assembler) checkFormats(ctx context.Context, clips []ProcessedClip) error {
	if a.prober == nil {
		return nil
	}
	want := ffmpeg.Canonical()
	for i, clip := range clips {
		probe, err := a.prober.Inspect(ctx, clip.Path)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, assembleStage, "probe clip",
				fmt.Sprintf("Failed to probe clip %d", i), err)
		}
		got, ok := probe.FirstAudioFormat()
		if !ok {
			return services.Wrap(services.ErrValidation, assembleStage, "check format",
				fmt.Sprintf("Clip %d has no audio stream", i), nil)
		}
		if got != want {
			return services.Wrap(services.ErrValidation, assembleStage, "check format",
				fmt.Sprintf("Clip %d is %s, want %s", i, got, want), nil)
		}
	}
	return nil
}
