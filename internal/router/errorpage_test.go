package router

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestErrorBodyShape(t *testing.T) {
	r := New(Config{ServerToken: "h2d/1.0.0", Port: 8443})
	body := string(r.errorBody("404"))

	if !strings.Contains(body, "<title>404</title>") {
		t.Errorf("errorBody missing title: %s", body)
	}
	if !strings.Contains(body, "<h1>404</h1>") {
		t.Errorf("errorBody missing h1: %s", body)
	}
	if !strings.Contains(body, "h2d/1.0.0 at port 8443") {
		t.Errorf("errorBody missing server/port address line: %s", body)
	}
}

func TestGzipBytesRoundTrips(t *testing.T) {
	orig := []byte("<html>hello</html>")
	compressed, err := gzipBytes(orig)
	if err != nil {
		t.Fatalf("gzipBytes() error = %v", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	defer zr.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(zr); err != nil {
		t.Fatalf("reading decompressed body: %v", err)
	}
	if out.String() != string(orig) {
		t.Errorf("round-tripped body = %q, want %q", out.String(), orig)
	}
}
