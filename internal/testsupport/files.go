package testsupport

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// Silent clips use the canonical pipeline format.
const (
	wavSampleRate = 44100
	wavChannels   = 2
	wavBitsDepth  = 16
)

// WriteWAV writes a silent PCM WAV of the given duration, creating parent
// directories as needed. Fake runners only care that the file exists, but a
// well-formed header keeps the fixture usable with a real ffprobe.
func WriteWAV(t testing.TB, path string, seconds float64) {
	t.Helper()

	frames := uint32(math.Round(max(seconds, 0) * wavSampleRate))
	blockAlign := uint16(wavChannels * wavBitsDepth / 8)
	dataSize := frames * uint32(blockAlign)

	header := make([]byte, 44)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], 36+dataSize)
	copy(header[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1)
	binary.LittleEndian.PutUint16(header[22:], wavChannels)
	binary.LittleEndian.PutUint32(header[24:], wavSampleRate)
	binary.LittleEndian.PutUint32(header[28:], wavSampleRate*uint32(blockAlign))
	binary.LittleEndian.PutUint16(header[32:], blockAlign)
	binary.LittleEndian.PutUint16(header[34:], wavBitsDepth)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], dataSize)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	body := append(header, make([]byte, dataSize)...)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
