package h2session

import (
	"testing"

	"golang.org/x/net/http2/hpack"
)

func TestStreamHeaderAccessors(t *testing.T) {
	s := newStream(nil, 1)
	s.addHeader(hpack.HeaderField{Name: ":method", Value: "GET"})
	s.addHeader(hpack.HeaderField{Name: ":path", Value: "/index.html"})
	s.addHeader(hpack.HeaderField{Name: ":scheme", Value: "https"})
	s.addHeader(hpack.HeaderField{Name: ":authority", Value: "example.com"})
	s.addHeader(hpack.HeaderField{Name: "if-modified-since", Value: "Mon, 01 Jan 2024 00:00:00 GMT"})
	s.addHeader(hpack.HeaderField{Name: "expect", Value: "100-continue"})
	s.addHeader(hpack.HeaderField{Name: "x-custom", Value: "ignored-by-index"})

	if got := s.Method(); got != "GET" {
		t.Errorf("Method() = %q, want GET", got)
	}
	if got := s.Path(); got != "/index.html" {
		t.Errorf("Path() = %q, want /index.html", got)
	}
	if got := s.Scheme(); got != "https" {
		t.Errorf("Scheme() = %q, want https", got)
	}
	if got := s.Authority(); got != "example.com" {
		t.Errorf("Authority() = %q, want example.com", got)
	}
	if got := s.IfModifiedSince(); got != "Mon, 01 Jan 2024 00:00:00 GMT" {
		t.Errorf("IfModifiedSince() = %q", got)
	}
	if got := s.Expect(); got != "100-continue" {
		t.Errorf("Expect() = %q, want 100-continue", got)
	}
	if len(s.headers) != 7 {
		t.Errorf("len(headers) = %d, want 7 (ordered vector keeps every header)", len(s.headers))
	}
}

func TestStreamAuthorityFallsBackToHost(t *testing.T) {
	s := newStream(nil, 1)
	s.addHeader(hpack.HeaderField{Name: "host", Value: "fallback.example"})

	if got := s.Authority(); got != "fallback.example" {
		t.Fatalf("Authority() = %q, want fallback.example", got)
	}
}

func TestStreamDestroyClosesBody(t *testing.T) {
	s := newStream(nil, 1)
	body := &fakeCloser{}
	s.body = body

	s.destroy()

	if !body.closed {
		t.Fatalf("destroy() did not close the stream body")
	}
}

type fakeCloser struct{ closed bool }

func (f *fakeCloser) Read(p []byte) (int, error) { return 0, nil }
func (f *fakeCloser) Close() error               { f.closed = true; return nil }
