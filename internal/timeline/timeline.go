package timeline

import (
	"fmt"
	"iter"
	"math"
	"strings"
)

// Tolerance is the slack allowed when comparing interval boundaries.
const Tolerance = 1e-6

// Segment is one transcribed speech span, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Kind tags an interval as speech or silence.
type Kind int

const (
	Silence Kind = iota
	Speech
)

func (k Kind) String() string {
	switch k {
	case Speech:
		return "speech"
	case Silence:
		return "silence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Interval is one contiguous span of the timeline. Source is set for Speech
// intervals and points at the segment the span was derived from.
type Interval struct {
	Index  int
	Start  float64
	End    float64
	Kind   Kind
	Source *Segment
}

// Duration returns End - Start.
func (iv Interval) Duration() float64 { return iv.End - iv.Start }

// Text returns the trimmed transcript text for Speech intervals.
func (iv Interval) Text() string {
	if iv.Source == nil {
		return ""
	}
	return strings.TrimSpace(iv.Source.Text)
}

// Timeline is the ordered partition of a track.
type Timeline []Interval

// Drain collects every segment from seq. The first error stops the drain and
// is returned with the segments gathered so far.
func Drain(seq iter.Seq2[Segment, error]) ([]Segment, error) {
	var segments []Segment
	if seq == nil {
		return segments, nil
	}
	for seg, err := range seq {
		if err != nil {
			return segments, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Partition builds the Timeline for segments over [0, total). Segments are
// taken in arrival order. Each start is clamped up to the end of the previous
// speech span and each end is clamped down to total; segments whose clamped
// span is empty are dropped. Gaps become Silence intervals.
func Partition(segments []Segment, total float64) Timeline {
	return PartitionFunc(segments, total, nil)
}

// ClampFunc observes segments adjusted or dropped by PartitionFunc.
type ClampFunc func(original Segment, start, end float64, dropped bool)

// PartitionFunc is Partition with a hook that reports clamped or dropped
// segments.
func PartitionFunc(segments []Segment, total float64, onClamp ClampFunc) Timeline {
	if total <= 0 || math.IsNaN(total) {
		return Timeline{}
	}
	out := make(Timeline, 0, len(segments)*2+1)
	cursor := 0.0
	for i := range segments {
		seg := segments[i]
		start := math.Max(seg.Start, cursor)
		end := math.Min(seg.End, total)
		clamped := start != seg.Start || end != seg.End
		if end-start <= 0 || math.IsNaN(start) || math.IsNaN(end) {
			if onClamp != nil {
				onClamp(seg, start, end, true)
			}
			continue
		}
		if clamped && onClamp != nil {
			onClamp(seg, start, end, false)
		}
		if start > cursor {
			out = append(out, Interval{Index: len(out), Start: cursor, End: start, Kind: Silence})
		}
		src := seg
		out = append(out, Interval{Index: len(out), Start: start, End: end, Kind: Speech, Source: &src})
		cursor = end
	}
	if cursor < total {
		out = append(out, Interval{Index: len(out), Start: cursor, End: total, Kind: Silence})
	}
	return out
}

// Duration sums the interval durations.
func (t Timeline) Duration() float64 {
	total := 0.0
	for _, iv := range t {
		total += iv.Duration()
	}
	return total
}

// Counts returns the number of speech and silence intervals.
func (t Timeline) Counts() (speech, silence int) {
	for _, iv := range t {
		if iv.Kind == Speech {
			speech++
		} else {
			silence++
		}
	}
	return speech, silence
}

// Speech returns the speech intervals in order.
func (t Timeline) Speech() []Interval {
	out := make([]Interval, 0, len(t))
	for _, iv := range t {
		if iv.Kind == Speech {
			out = append(out, iv)
		}
	}
	return out
}

// Validate checks that t starts at 0, ends at total, is contiguous, has
// sequential indices, and contains no empty intervals.
func (t Timeline) Validate(total float64) error {
	if len(t) == 0 {
		if total > Tolerance {
			return fmt.Errorf("timeline empty but track is %.3fs", total)
		}
		return nil
	}
	if math.Abs(t[0].Start) > Tolerance {
		return fmt.Errorf("timeline starts at %.6f, want 0", t[0].Start)
	}
	for i, iv := range t {
		if iv.Index != i {
			return fmt.Errorf("interval %d has index %d", i, iv.Index)
		}
		if iv.Duration() <= 0 {
			return fmt.Errorf("interval %d has non-positive duration %.6f", i, iv.Duration())
		}
		if iv.Kind == Speech && iv.Source == nil {
			return fmt.Errorf("speech interval %d has no source segment", i)
		}
		if i > 0 && math.Abs(t[i-1].End-iv.Start) > Tolerance {
			return fmt.Errorf("gap or overlap between interval %d (end %.6f) and %d (start %.6f)", i-1, t[i-1].End, i, iv.Start)
		}
	}
	if last := t[len(t)-1]; math.Abs(last.End-total) > Tolerance {
		return fmt.Errorf("timeline ends at %.6f, want %.6f", last.End, total)
	}
	return nil
}
