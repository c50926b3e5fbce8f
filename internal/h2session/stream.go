package h2session

import (
	"io"
	"time"

	"golang.org/x/net/http2/hpack"
)

// recognised header tokens get a fast side-table lookup instead of a
// linear scan of the header vector, mirroring the handful of pseudo- and
// regular headers the router actually needs.
const (
	tokenMethod          = ":method"
	tokenPath            = ":path"
	tokenScheme          = ":scheme"
	tokenAuthority       = ":authority"
	tokenHost            = "host"
	tokenIfModifiedSince = "if-modified-since"
	tokenExpect          = "expect"
)

// Stream is one HTTP/2 request+response exchange multiplexed inside a
// Session. Its handler back-reference is non-owning: Session exclusively
// owns Streams, never the reverse.
type Stream struct {
	handler  *Session
	id       uint32
	headers  []hpack.HeaderField
	idx      map[string]string

	body     io.ReadCloser
	bodyLeft int64

	rTimer *time.Timer
	wTimer *time.Timer

	// rTimerActive/wTimerActive track whether the corresponding timer is
	// currently the reason a future timerEvent for this stream is live,
	// so a stale fire (timer already disarmed and possibly reused by a
	// later arm) is recognised and dropped rather than acted on.
	rTimerActive bool
	wTimerActive bool

	// remoteClosed is set once END_STREAM has been observed from the
	// peer (request HEADERS or DATA); localClosed is set once this side
	// has sent its own END_STREAM or a local RST_STREAM. A stream is
	// only removed from its Session once both are true.
	remoteClosed bool
	localClosed  bool

	// closed is set once destroy has run, guarding against a double
	// teardown if both directions close in the same dispatch.
	closed bool
}

func newStream(h *Session, id uint32) *Stream {
	return &Stream{
		handler: h,
		id:      id,
		idx:     make(map[string]string, 8),
	}
}

// addHeader appends a header to the ordered vector and, if it is a
// recognised token, records it in the fast lookup side-table.
func (s *Stream) addHeader(f hpack.HeaderField) {
	s.headers = append(s.headers, f)
	switch f.Name {
	case tokenMethod, tokenPath, tokenScheme, tokenAuthority, tokenHost,
		tokenIfModifiedSince, tokenExpect:
		s.idx[f.Name] = f.Value
	}
}

// header returns a recognised token's value, or "" if absent.
func (s *Stream) header(token string) string {
	return s.idx[token]
}

// Method returns the request's :method pseudo-header.
func (s *Stream) Method() string { return s.header(tokenMethod) }

// Path returns the request's :path pseudo-header.
func (s *Stream) Path() string { return s.header(tokenPath) }

// Scheme returns the request's :scheme pseudo-header.
func (s *Stream) Scheme() string { return s.header(tokenScheme) }

// Authority returns :authority, falling back to the host header.
func (s *Stream) Authority() string {
	if a := s.header(tokenAuthority); a != "" {
		return a
	}
	return s.header(tokenHost)
}

// IfModifiedSince returns the raw if-modified-since header value.
func (s *Stream) IfModifiedSince() string { return s.header(tokenIfModifiedSince) }

// Expect returns the raw expect header value.
func (s *Stream) Expect() string { return s.header(tokenExpect) }

// ID returns the stream's id, scoped to its owning Session.
func (s *Stream) ID() uint32 { return s.id }

// destroy stops both inactivity timers and closes the body source, per
// the invariant that a Stream's timers are stopped and its fd released
// before it is dropped.
func (s *Stream) destroy() {
	if s.closed {
		return
	}
	s.closed = true
	if s.rTimer != nil {
		s.rTimer.Stop()
	}
	if s.wTimer != nil {
		s.wTimer.Stop()
	}
	if s.body != nil {
		s.body.Close()
	}
}
