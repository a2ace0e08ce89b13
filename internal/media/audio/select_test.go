package audio

import (
	"testing"

	"dubber/internal/media/ffprobe"
)

func TestSelectPrefersRequestedLanguage(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 0, CodecType: "video"},
		{
			Index:       1,
			CodecType:   "audio",
			CodecName:   "truehd",
			Channels:    8,
			Tags:        map[string]string{"language": "eng"},
			Disposition: map[string]int{"default": 1},
		},
		{
			Index:     2,
			CodecType: "audio",
			CodecName: "ac3",
			Channels:  2,
			Tags:      map[string]string{"language": "spa"},
		},
	}

	sel := Select(streams, "es")
	if sel.AudioIndex != 1 {
		t.Fatalf("expected spanish track (audio index 1), got %d", sel.AudioIndex)
	}
	if !sel.LanguageMatched {
		t.Fatal("expected language match")
	}
	if sel.MapSpecifier() != "0:a:1" {
		t.Fatalf("unexpected map specifier %q", sel.MapSpecifier())
	}
}

func TestSelectSkipsCommentary(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 1, CodecType: "audio", CodecName: "flac", Channels: 2, Tags: map[string]string{"language": "eng", "title": "Director Commentary"}},
		{Index: 2, CodecType: "audio", CodecName: "ac3", Channels: 6, Tags: map[string]string{"language": "eng"}},
	}
	sel := Select(streams, "en")
	if sel.AudioIndex != 1 {
		t.Fatalf("expected main track over commentary, got %d", sel.AudioIndex)
	}
}

func TestSelectFallsBackWithoutMatch(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 0, CodecType: "audio", CodecName: "aac", Channels: 2, Tags: map[string]string{"language": "jpn"}},
		{Index: 1, CodecType: "audio", CodecName: "aac", Channels: 2, Tags: map[string]string{"language": "fra"}},
	}
	sel := Select(streams, "de")
	if sel.AudioIndex != 0 || sel.LanguageMatched {
		t.Fatalf("expected first track without match, got %+v", sel)
	}
	if sel.Label() == "" {
		t.Fatal("expected label")
	}
}

func TestSelectWithoutAudio(t *testing.T) {
	sel := Select([]ffprobe.Stream{{CodecType: "video"}}, "en")
	if sel.Found() {
		t.Fatal("expected no selection")
	}
	if sel.MapSpecifier() != "0:a:0" {
		t.Fatalf("unexpected fallback specifier %q", sel.MapSpecifier())
	}
}
