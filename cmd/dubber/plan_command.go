package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dubber/internal/dubbing"
	"dubber/internal/timeline"
)

const planTextWidth = 60

type planInterval struct {
	Index int     `json:"index"`
	Kind  string  `json:"kind"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text,omitempty"`
}

type planOutput struct {
	Input     string         `json:"input"`
	Track     string         `json:"track"`
	Duration  float64        `json:"duration"`
	Segments  int            `json:"segments"`
	Intervals []planInterval `json:"intervals"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var (
		language string
		segments string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "plan <input>",
		Short: "Print the speech/silence timeline without rendering audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := applyRunOptions(*base, cmd, runOptions{language: language, segments: segments})
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, storeErr := ctx.ensureStore()
			if storeErr != nil {
				store = nil
			}
			pipeline, err := dubbing.NewFromConfig(cfg, store, logger)
			if err != nil {
				return err
			}
			plan, err := pipeline.Plan(commandContextOrBackground(cmd), args[0])
			if err != nil {
				return err
			}
			view := buildPlanOutput(args[0], plan)
			return emit(cmd, asJSON, view, func(out io.Writer) { renderPlan(out, view) })
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "Source language (ISO code or name)")
	cmd.Flags().StringVar(&segments, "segments", "", "Use a WhisperX JSON or SRT file instead of transcribing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func buildPlanOutput(input string, plan dubbing.Plan) planOutput {
	view := planOutput{
		Input:     input,
		Track:     plan.Track.Label(),
		Duration:  plan.Duration,
		Segments:  len(plan.Segments),
		Intervals: make([]planInterval, 0, len(plan.Timeline)),
	}
	for _, iv := range plan.Timeline {
		view.Intervals = append(view.Intervals, planInterval{
			Index: iv.Index,
			Kind:  iv.Kind.String(),
			Start: iv.Start,
			End:   iv.End,
			Text:  iv.Text(),
		})
	}
	return view
}

func renderPlan(out io.Writer, view planOutput) {
	speech := 0
	for _, iv := range view.Intervals {
		if iv.Kind == timeline.Speech.String() {
			speech++
		}
	}
	fmt.Fprintf(out, "Input:     %s\n", view.Input)
	if view.Track != "" {
		fmt.Fprintf(out, "Track:     %s\n", view.Track)
	}
	fmt.Fprintf(out, "Duration:  %s\n", formatSeconds(view.Duration))
	fmt.Fprintf(out, "Segments:  %d (%d speech, %d silence intervals)\n", view.Segments, speech, len(view.Intervals)-speech)

	rows := make([][]string, 0, len(view.Intervals))
	for _, iv := range view.Intervals {
		rows = append(rows, []string{
			strconv.Itoa(iv.Index),
			iv.Kind,
			formatSeconds(iv.Start),
			formatSeconds(iv.End),
			formatSeconds(iv.End - iv.Start),
			truncate(iv.Text, planTextWidth),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Kind", "Start", "End", "Length", "Text"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if width <= 1 || len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}
