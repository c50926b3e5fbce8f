package router

import (
	"bytes"
	"io"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"github.com/iridium2/h2d/internal/h2session"
)

// statusResponse emits a minimal HTML status page for anything that is
// not a 200, mirroring the original's generated "<h1>status</h1> ...
// <server> at port <N>" body. 304 carries no body at all, matching the original's special case
// for STATUS_304 (pipe() is skipped entirely there).
func (r *Router) statusResponse(sess *h2session.Session, st *h2session.Stream, status string) {
	if status == "304" {
		if err := sess.SubmitResponse(st, status, nil, nil, 0); err != nil {
			r.logf("submit status %s failed: %v", status, err)
		}
		return
	}

	body := r.errorBody(status)
	extra := []h2session.HeaderKV{{Name: "content-type", Value: "text/html; charset=UTF-8"}}

	if r.cfg.ErrorGzip {
		gz, err := gzipBytes(body)
		if err == nil {
			body = gz
			extra = append(extra, h2session.HeaderKV{Name: "content-encoding", Value: "gzip"})
		}
	}

	extra = append(extra, h2session.HeaderKV{Name: "content-length", Value: strconv.Itoa(len(body))})

	if err := sess.SubmitResponse(st, status, extra, io.NopCloser(bytes.NewReader(body)), int64(len(body))); err != nil {
		r.logf("submit status %s failed: %v", status, err)
	}
}

func (r *Router) errorBody(status string) []byte {
	var b bytes.Buffer
	b.WriteString("<html><head><title>")
	b.WriteString(status)
	b.WriteString("</title></head><body><h1>")
	b.WriteString(status)
	b.WriteString("</h1><hr><address>")
	b.WriteString(r.cfg.ServerToken)
	b.WriteString(" at port ")
	b.WriteString(strconv.Itoa(r.cfg.Port))
	b.WriteString("</address></body></html>")
	return b.Bytes()
}

func gzipBytes(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
