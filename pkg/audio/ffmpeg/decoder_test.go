package ffmpeg

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"slices"
	"testing"

	"github.com/eric-livezey/void-bot/pkg/audio"
)

func TestArgs(t *testing.T) {
	t.Parallel()

	got := Args("/cache/abc.webm")
	want := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "/cache/abc.webm",
		"-vn", "-f", "s16le", "-ar", "48000", "-ac", "2",
		"pipe:1",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Args = %v\nwant %v", got, want)
	}
}

func TestNew_DefaultBinary(t *testing.T) {
	t.Parallel()
	if d := New(""); d.bin != "ffmpeg" {
		t.Errorf("bin = %q, want ffmpeg", d.bin)
	}
}

func TestDecode_MissingBinary(t *testing.T) {
	t.Parallel()
	d := New("/nonexistent/ffmpeg-binary")
	_, err := d.Decode(context.Background(), audio.NewFileResource("x"))
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestDecode_ExitStatus(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		bin     string
		wantErr bool
	}{
		{"true", false},
		{"false", true},
	} {
		t.Run(tc.bin, func(t *testing.T) {
			t.Parallel()
			path, err := exec.LookPath(tc.bin)
			if err != nil {
				t.Skipf("%s not available: %v", tc.bin, err)
			}
			rc, err := New(path).Decode(context.Background(), audio.NewFileResource("x"))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			defer rc.Close()

			_, err = io.ReadAll(rc)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error from failed process")
				}
				var exitErr *exec.ExitError
				if !errors.As(err, &exitErr) {
					t.Errorf("error %v does not wrap *exec.ExitError", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLimitedBuffer(t *testing.T) {
	t.Parallel()
	b := &limitedBuffer{max: 4}
	n, _ := b.Write([]byte("abcdef"))
	if n != 6 {
		t.Errorf("Write returned %d, want 6", n)
	}
	_, _ = b.Write([]byte("gh"))
	if got := b.String(); got != "abcd" {
		t.Errorf("String() = %q, want %q", got, "abcd")
	}
}
