package source

import "testing"

func TestExtractVideoID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ&list=PL123", "dQw4w9WgXcQ", true},
		{"http://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/playlist?list=PL123", "", false},
		{"https://www.youtube.com/watch?v=short", "", false},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ/extra", "", false},
		{"https://youtu.be/", "", false},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", false},
		{"ftp://www.youtube.com/watch?v=dQw4w9WgXcQ", "", false},
		{"never gonna give you up", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ExtractVideoID(tc.in)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("ExtractVideoID(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestExtractPlaylistID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://www.youtube.com/playlist?list=PLx0sYbCqOb8TBPRdmBHs5Iftvv9TPboYG", "PLx0sYbCqOb8TBPRdmBHs5Iftvv9TPboYG", true},
		{"https://music.youtube.com/playlist?list=OLAK5uy_abc", "OLAK5uy_abc", true},
		{"https://www.youtube.com/playlist", "", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123", "", false},
		{"https://youtu.be/playlist?list=PL123", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ExtractPlaylistID(tc.in)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("ExtractPlaylistID(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestExtractChannelID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://www.youtube.com/channel/UC38IQsAvIsxxjztdMZQtwHA", "UC38IQsAvIsxxjztdMZQtwHA", true},
		{"https://www.youtube.com/@RickAstleyYT", "@RickAstleyYT", true},
		{"https://www.youtube.com/@RickAstleyYT/videos", "@RickAstleyYT", true},
		{"https://www.youtube.com/channel/", "", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ExtractChannelID(tc.in)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("ExtractChannelID(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestURLBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, got, want string
	}{
		{"video", VideoURL("dQw4w9WgXcQ", false), "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"video short", VideoURL("dQw4w9WgXcQ", true), "https://youtu.be/dQw4w9WgXcQ"},
		{"playlist", PlaylistURL("PL1"), "https://www.youtube.com/playlist?list=PL1"},
		{"channel", ChannelURL("UC1"), "https://www.youtube.com/channel/UC1"},
		{"thumbnail", ThumbnailURL("dQw4w9WgXcQ"), "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s = %q, want %q", tc.name, tc.got, tc.want)
		}
	}
}
