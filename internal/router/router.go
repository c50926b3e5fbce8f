// Package router resolves a completed HTTP/2 request into a response:
// percent-decoding and validating the request path, consulting the push
// map, serving a file from the document root, or producing a redirect or
// status page. It is the Go-native RequestRouter behind the
// h2session.RequestHandler callback.
package router

import (
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/iridium2/h2d/internal/h2session"
)

// doNotRespondMarker lets clients exercise read/write-timeout behaviour on
// demand: a request whose query string carries it gets no response at
// all, the stream is simply left open.
const doNotRespondMarker = "nghttpd_do_not_respond_to_req=yes"

const defaultIndex = "index.html"

// Config is the subset of server configuration the router consults.
type Config struct {
	Htdocs      string
	Push        map[string][]string
	Trailer     []h2session.HeaderKV
	ErrorGzip   bool
	ServerToken string
	Port        int
	Logf        func(format string, args ...interface{})
}

// Router holds the resolved configuration a server wires into every
// Session as its RequestHandler.
type Router struct {
	cfg Config
}

// New builds a Router from cfg.
func New(cfg Config) *Router {
	return &Router{cfg: cfg}
}

// Handle implements h2session.RequestHandler.
func (r *Router) Handle(sess *h2session.Session, st *h2session.Stream, allowPush bool) {
	reqPath := st.Path()

	rawPath := reqPath
	queryIdx := strings.IndexByte(reqPath, '?')
	if queryIdx >= 0 {
		if strings.Contains(reqPath[queryIdx:], doNotRespondMarker) {
			return
		}
		rawPath = reqPath[:queryIdx]
	}

	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		decoded = rawPath
	}
	if !checkPath(decoded) {
		r.statusResponse(sess, st, "404")
		return
	}

	if allowPush {
		for _, pushPath := range r.cfg.Push[decoded] {
			if _, err := sess.SubmitPushPromise(st, pushPath); err != nil {
				r.logf("push promise %s -> %s failed: %v", decoded, pushPath, err)
			}
		}
	}

	fsPath := r.cfg.Htdocs + decoded
	if strings.HasSuffix(fsPath, "/") {
		fsPath += defaultIndex
	}

	f, fi, err := openFileBody(fsPath)
	if err != nil {
		r.statusResponse(sess, st, "404")
		return
	}

	if fi.IsDir() {
		f.Close()
		redirectPath := reqPath
		if queryIdx < 0 {
			redirectPath += "/"
		} else {
			redirectPath = reqPath[:queryIdx] + "/" + reqPath[queryIdx:]
		}
		r.redirectResponse(sess, st, redirectPath, "301")
		return
	}

	if ims := st.IfModifiedSince(); ims != "" {
		if t, err := http.ParseTime(ims); err == nil {
			if !fi.ModTime().Truncate(time.Second).After(t) {
				f.Close()
				r.statusResponse(sess, st, "304")
				return
			}
		}
	}

	extra := mergeHeaders(
		map[string]string{
			"content-length": strconv.FormatInt(fi.Size(), 10),
			"last-modified":   fi.ModTime().UTC().Format(http.TimeFormat),
			"content-type":    contentType(fsPath),
		},
	)
	if len(r.cfg.Trailer) > 0 {
		extra = append(extra, h2session.HeaderKV{Name: "trailer", Value: trailerNames(r.cfg.Trailer)})
	}

	if err := sess.SubmitResponse(st, "200", extra, f, fi.Size()); err != nil {
		r.logf("submit response for %s failed: %v", decoded, err)
	}
}

func (r *Router) redirectResponse(sess *h2session.Session, st *h2session.Stream, path, status string) {
	scheme := st.Scheme()
	if scheme == "" {
		scheme = "http"
	}
	authority := st.Authority()
	location := scheme + "://" + authority + path

	extra := []h2session.HeaderKV{{Name: "location", Value: location}}
	if err := sess.SubmitResponse(st, status, extra, nil, 0); err != nil {
		r.logf("submit redirect for %s failed: %v", path, err)
	}
}

func (r *Router) logf(format string, args ...interface{}) {
	if r.cfg.Logf != nil {
		r.cfg.Logf(format, args...)
	}
}

// checkPath rejects any decoded path that is not rooted or that contains
// a traversal segment or embedded NUL byte.
func checkPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if strings.ContainsRune(p, 0) {
		return false
	}
	if strings.Contains(p, "/../") || strings.HasSuffix(p, "/..") {
		return false
	}
	if strings.Contains(p, "/./") || strings.HasSuffix(p, "/.") {
		return false
	}
	return true
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func trailerNames(entries []h2session.HeaderKV) string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return strings.Join(names, ", ")
}
