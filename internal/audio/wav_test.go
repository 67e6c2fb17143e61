package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestWriteWAVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment_0001.wav")

	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(i % 256)
	}

	if err := writeWAV(path, samples, 16000); err != nil {
		t.Fatalf("writeWAV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening written file: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if dec.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Errorf("channels = %d, want 1", dec.NumChans)
	}
	if got := len(buf.Data); got != len(samples) {
		t.Fatalf("decoded %d samples, want %d", got, len(samples))
	}
	for i, want := range samples {
		if buf.Data[i] != int(want) {
			t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], want)
		}
	}
}

func TestWriteWAVBadDir(t *testing.T) {
	err := writeWAV(filepath.Join(t.TempDir(), "missing", "x.wav"), []int16{1, 2, 3}, 16000)
	if err == nil {
		t.Fatal("expected error writing to missing directory")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment_0001.wav")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Delete(path); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file still present after delete")
	}
	if err := Delete(path); err != nil {
		t.Fatalf("second delete should be a no-op, got: %v", err)
	}
}
