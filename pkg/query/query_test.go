package query

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKind  Kind
		wantValue string
	}{
		{"bare video id", "dQw4w9WgXcQ", KindVideo, "dQw4w9WgXcQ"},
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", KindVideo, "dQw4w9WgXcQ"},
		{"short url", "https://youtu.be/dQw4w9WgXcQ?t=10", KindVideo, "dQw4w9WgXcQ"},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ", KindVideo, "dQw4w9WgXcQ"},
		{"playlist url", "https://www.youtube.com/playlist?list=PL123", KindPlaylist, "PL123"},
		{"playlist param after other params", "https://www.youtube.com/watch?feature=share&list=PL123", KindPlaylist, "PL123"},
		{"video wins over playlist", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123", KindVideo, "dQw4w9WgXcQ"},
		{"free text", "lofi hip hop", KindText, "lofi hip hop"},
		{"free text trimmed", "  daft punk  ", KindText, "daft punk"},
		{"short token is text", "abc", KindText, "abc"},
		{"empty", "", KindText, ""},
		{"twelve chars is text", "abcdefghijkl", KindText, "abcdefghijkl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.input)
			if got.Kind != tt.wantKind {
				t.Errorf("Classify(%q).Kind = %q, want %q", tt.input, got.Kind, tt.wantKind)
			}
			if got.Value != tt.wantValue {
				t.Errorf("Classify(%q).Value = %q, want %q", tt.input, got.Value, tt.wantValue)
			}
			if got.Raw != tt.input {
				t.Errorf("Classify(%q).Raw = %q", tt.input, got.Raw)
			}
		})
	}
}

func TestCanonicalURLs(t *testing.T) {
	if got := WatchURL("dQw4w9WgXcQ"); got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("WatchURL() = %q", got)
	}
	if got := PlaylistURL("PL123"); got != "https://www.youtube.com/playlist?list=PL123" {
		t.Errorf("PlaylistURL() = %q", got)
	}
	// Canonical references classify back to the same ID.
	if q := Classify(WatchURL("dQw4w9WgXcQ")); q.Kind != KindVideo || q.Value != "dQw4w9WgXcQ" {
		t.Errorf("watch URL round trip = %+v", q)
	}
	if q := Classify(PlaylistURL("PL123")); q.Kind != KindPlaylist || q.Value != "PL123" {
		t.Errorf("playlist URL round trip = %+v", q)
	}
}

func TestSearchRef(t *testing.T) {
	if got := SearchRef("lofi", 10); got != "ytsearch10:lofi" {
		t.Errorf("SearchRef() = %q", got)
	}
	if got := SearchRef("lofi", 0); got != "ytsearch:lofi" {
		t.Errorf("SearchRef() = %q", got)
	}
}
