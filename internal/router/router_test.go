package router

import "testing"

func TestCheckPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/index.html", true},
		{"/a/b/c.txt", true},
		{"", false},
		{"relative.html", false},
		{"/../etc/passwd", false},
		{"/a/../b", false},
		{"/a/..", false},
		{"/a/./b", false},
		{"/a/.", false},
		{"/has\x00null", false},
		{"/", true},
	}
	for _, tc := range cases {
		if got := checkPath(tc.path); got != tc.want {
			t.Errorf("checkPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestContentTypeFallsBackToOctetStream(t *testing.T) {
	if got := contentType("/htdocs/file.unknownext"); got != "application/octet-stream" {
		t.Errorf("contentType() = %q, want application/octet-stream", got)
	}
	if got := contentType("/htdocs/index.html"); got != "text/html; charset=utf-8" {
		t.Errorf("contentType() = %q, want text/html; charset=utf-8", got)
	}
}

func TestMergeHeadersLowercasesAndDedupesFirstSeen(t *testing.T) {
	out := mergeHeaders(
		map[string]string{"Content-Type": "text/plain"},
		map[string]string{"content-type": "text/html", "X-Extra": "v"},
	)
	seen := make(map[string]string)
	for _, kv := range out {
		seen[kv.Name] = kv.Value
	}
	if seen["content-type"] != "text/plain" {
		t.Errorf("content-type = %q, want first-seen value text/plain", seen["content-type"])
	}
	if seen["x-extra"] != "v" {
		t.Errorf("x-extra = %q, want v", seen["x-extra"])
	}
}
