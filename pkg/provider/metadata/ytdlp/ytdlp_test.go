package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
)

// fakeYtdlp writes a shell script that records its arguments to args.txt and
// runs body. It returns the script path and a func reading the recorded args.
func fakeYtdlp(t *testing.T, body string) (string, func() string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := filepath.Join(dir, "yt-dlp")
	content := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n" + body + "\n"
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return script, func() string {
		b, err := os.ReadFile(argsFile)
		if err != nil {
			t.Fatalf("read args: %v", err)
		}
		return string(b)
	}
}

func line(fields ...string) string {
	return strings.Join(fields, "\t")
}

func TestParseEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stdout string
		want   []metadata.Descriptor
	}{
		{
			name:   "empty",
			stdout: "",
		},
		{
			name: "full line",
			stdout: line("dQw4w9WgXcQ", "Never Gonna Give You Up", "212", "Rick Astley",
				"https://www.youtube.com/channel/UC1", "https://i.ytimg.com/x.jpg", "NA"),
			want: []metadata.Descriptor{{
				SourceID:     "dQw4w9WgXcQ",
				Title:        "Never Gonna Give You Up",
				Duration:     212 * time.Second,
				AuthorName:   "Rick Astley",
				AuthorURL:    "https://www.youtube.com/channel/UC1",
				ThumbnailURL: "https://i.ytimg.com/x.jpg",
			}},
		},
		{
			name:   "missing fields become empty",
			stdout: line("abc", "NA", "NA", "NA", "NA", "NA", "NA"),
			want:   []metadata.Descriptor{{SourceID: "abc", Title: "abc"}},
		},
		{
			name: "short and id-less lines skipped",
			stdout: "garbage\n" +
				line("NA", "t", "1", "a", "u", "th", "p") + "\n" +
				line("id2", "Two", "1.6", "a", "u", "th", "p"),
			want: []metadata.Descriptor{{
				SourceID: "id2", Title: "Two", Duration: 2 * time.Second,
				AuthorName: "a", AuthorURL: "u", ThumbnailURL: "th",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parseEntries(tt.stdout)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Descriptor != tt.want[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i].Descriptor, tt.want[i])
				}
			}
		})
	}
}

func TestParseSeconds(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]time.Duration{
		"":      0,
		"90":    90 * time.Second,
		"90.4":  90 * time.Second,
		"bogus": 0,
		"-5":    0,
	} {
		if got := parseSeconds(in); got != want {
			t.Errorf("parseSeconds(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	bin, args := fakeYtdlp(t, `printf 'a1\tFirst\t10\tAlice\tNA\tNA\tNA\nb2\tSecond\t20\tBob\tNA\tNA\tNA\n'`)
	p := New(WithExecutable(bin), WithSearchLimit(2))

	got, err := p.Search(context.Background(), "lofi beats")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].SourceID != "a1" || got[1].AuthorName != "Bob" {
		t.Errorf("Search = %+v", got)
	}
	if a := args(); !strings.Contains(a, "ytsearch2:lofi beats") || !strings.Contains(a, "--flat-playlist") {
		t.Errorf("args = %q", a)
	}
}

func TestSearch_Music(t *testing.T) {
	t.Parallel()

	bin, args := fakeYtdlp(t, `printf 'a1\tFirst\t10\tAlice\tNA\tNA\tNA\n'`)
	if _, err := New(WithExecutable(bin), WithMusicSearch()).Search(context.Background(), "q"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if a := args(); !strings.Contains(a, "ytmsearch5:q") {
		t.Errorf("args = %q", a)
	}
}

func TestResolveQuery_NotFound(t *testing.T) {
	t.Parallel()

	bin, _ := fakeYtdlp(t, "true")
	_, err := New(WithExecutable(bin)).ResolveQuery(context.Background(), "nothing")
	if !errors.Is(err, metadata.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveID(t *testing.T) {
	t.Parallel()

	bin, args := fakeYtdlp(t, `printf 'dQw4w9WgXcQ\tSong\t212\tRick\tNA\tNA\tNA\n'`)
	d, err := New(WithExecutable(bin)).ResolveID(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("ResolveID: %v", err)
	}
	if d.Title != "Song" || d.Duration != 212*time.Second {
		t.Errorf("descriptor = %+v", d)
	}
	a := args()
	if !strings.Contains(a, "--skip-download") || !strings.Contains(a, "watch?v=dQw4w9WgXcQ") {
		t.Errorf("args = %q", a)
	}
}

func TestResolvePlaylist_Paging(t *testing.T) {
	t.Parallel()

	bin, args := fakeYtdlp(t, `printf 'a\tA\t1\tx\tNA\tNA\tMix\nb\tB\t2\tx\tNA\tNA\tMix\n'`)
	p := New(WithExecutable(bin), WithPageSize(2))

	page, err := p.ResolvePlaylist(context.Background(), "PL123", "")
	if err != nil {
		t.Fatalf("ResolvePlaylist: %v", err)
	}
	if len(page.Items) != 2 || page.Title != "Mix" {
		t.Errorf("page = %+v", page)
	}
	if page.Next != "3" {
		t.Errorf("Next = %q, want 3", page.Next)
	}
	if a := args(); !strings.Contains(a, "1-2") || !strings.Contains(a, "list=PL123") {
		t.Errorf("args = %q", a)
	}

	page, err = p.ResolvePlaylist(context.Background(), "PL123", page.Next)
	if err != nil {
		t.Fatalf("ResolvePlaylist page 2: %v", err)
	}
	if a := args(); !strings.Contains(a, "3-4") {
		t.Errorf("args = %q, want range 3-4", a)
	}
	_ = page
}

func TestResolvePlaylist_ShortPageEnds(t *testing.T) {
	t.Parallel()

	bin, _ := fakeYtdlp(t, `printf 'a\tA\t1\tx\tNA\tNA\tMix\n'`)
	page, err := New(WithExecutable(bin), WithPageSize(2)).ResolvePlaylist(context.Background(), "PL", "")
	if err != nil {
		t.Fatalf("ResolvePlaylist: %v", err)
	}
	if page.Next != "" {
		t.Errorf("Next = %q, want empty", page.Next)
	}
}

func TestResolvePlaylist_BadToken(t *testing.T) {
	t.Parallel()
	if _, err := New().ResolvePlaylist(context.Background(), "PL", "zero"); err == nil {
		t.Fatal("expected error for invalid token")
	}
}

func TestRun_ExitError(t *testing.T) {
	t.Parallel()

	bin, _ := fakeYtdlp(t, "echo 'ERROR: video unavailable' >&2; exit 1")
	_, err := New(WithExecutable(bin)).ResolveID(context.Background(), "gone")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, metadata.ErrNotFound) {
		t.Error("tool failure must not be reported as ErrNotFound")
	}
}
