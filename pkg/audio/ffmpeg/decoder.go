// Package ffmpeg decodes audio resources into Discord-ready PCM by running an
// ffmpeg subprocess per resource.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/eric-livezey/void-bot/pkg/audio"
	"github.com/eric-livezey/void-bot/pkg/audio/sink"
)

var _ sink.Decoder = (*Decoder)(nil)

// maxStderr bounds how much ffmpeg diagnostic output is kept for error messages.
const maxStderr = 4 << 10

// Decoder runs ffmpeg to convert a resource to 48 kHz stereo s16le PCM.
type Decoder struct {
	bin string
}

// New returns a Decoder that invokes the ffmpeg binary at bin. An empty bin
// resolves "ffmpeg" from PATH.
func New(bin string) *Decoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Decoder{bin: bin}
}

// Args returns the ffmpeg command line used to decode input.
func Args(input string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"pipe:1",
	}
}

// Decode starts ffmpeg for res and returns its PCM output. Closing the returned
// reader terminates the process. A file resource is passed by path; a stream
// resource is piped to stdin.
func (d *Decoder) Decode(ctx context.Context, res *audio.Resource) (io.ReadCloser, error) {
	input := res.Path()
	if input == "" {
		input = "pipe:0"
	}
	cmd := exec.CommandContext(ctx, d.bin, Args(input)...)
	if r := res.Stream(); r != nil {
		cmd.Stdin = r
	}
	stderr := &limitedBuffer{max: maxStderr}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start: %w", err)
	}
	return &process{ReadCloser: stdout, cmd: cmd, stderr: stderr}, nil
}

// process is the PCM stream of a running ffmpeg.
type process struct {
	io.ReadCloser
	cmd    *exec.Cmd
	stderr *limitedBuffer

	closeOnce sync.Once
	waitErr   error
}

// Read returns io.EOF on clean exit and a descriptive error when ffmpeg failed.
func (p *process) Read(b []byte) (int, error) {
	n, err := p.ReadCloser.Read(b)
	if errors.Is(err, io.EOF) {
		if werr := p.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// Close kills ffmpeg if it is still running and reaps it.
func (p *process) Close() error {
	_ = p.ReadCloser.Close()
	if p.cmd.ProcessState == nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.wait()
	return nil
}

func (p *process) wait() error {
	p.closeOnce.Do(func() {
		if err := p.cmd.Wait(); err != nil {
			msg := strings.TrimSpace(p.stderr.String())
			if msg != "" {
				p.waitErr = fmt.Errorf("ffmpeg: %w: %s", err, msg)
			} else {
				p.waitErr = fmt.Errorf("ffmpeg: %w", err)
			}
		}
	})
	return p.waitErr
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
