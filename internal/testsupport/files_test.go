package testsupport

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteWAVHeaderMatchesLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "clip.wav")
	WriteWAV(t, path, 0.5)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("unexpected header %q", data[:44])
	}
	dataSize := binary.LittleEndian.Uint32(data[40:44])
	byteRate := binary.LittleEndian.Uint32(data[28:32])
	if want := uint32(44100 * 2 * 2 / 2); dataSize != want {
		t.Fatalf("data size = %d, want %d", dataSize, want)
	}
	if byteRate != 44100*4 {
		t.Fatalf("byte rate = %d", byteRate)
	}
	if len(data) != 44+int(dataSize) {
		t.Fatalf("file length = %d, want %d", len(data), 44+dataSize)
	}
}
