// Package h2session implements the per-connection HTTP/2 engine: frame
// dispatch, stream bookkeeping, flow-control accounting, and the
// inactivity/settings-ack timers that drive stream and session teardown.
// It is built directly on golang.org/x/net/http2's Framer and
// golang.org/x/net/http2/hpack, which play the role of the external
// frame/HPACK codec library the rest of this engine treats as a black box.
package h2session

import (
	"bytes"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

const (
	readChunkHint        = 8192
	maxConcurrentStreams = 100
	settingsAckTimeout   = 10 * time.Second
	serverDataChunk      = 16 * 1024
)

// HeaderKV is one response header name/value pair, with an indexing hint
// for HPACK (used for values that must never be inserted into the
// peer-observed dynamic table, e.g. cookies — unused today but kept for
// parity with the codec's add_header contract).
type HeaderKV struct {
	Name    string
	Value   string
	NoIndex bool
}

// RequestHandler is invoked once a Stream's request is fully known (either
// at HEADERS completion, under early_response, or at end of request body).
// allowPush is false for promised streams, which must not recurse into the
// push map.
type RequestHandler func(sess *Session, stream *Stream, allowPush bool)

// Config carries the subset of server configuration the session engine
// consults directly.
type Config struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	Padding         int
	HeaderTableSize int // SETTINGS_HEADER_TABLE_SIZE to advertise; <0 means omit
	EarlyResponse   bool
	Trailer         []HeaderKV
	ServerToken     string
	DateFn          func() string
}

// Session is one HTTP/2 connection: one socket, one set of streams keyed
// by stream id, one outbound write buffer. A Session is only ever mutated
// from the goroutine running Serve.
type Session struct {
	id      int64
	conn    net.Conn
	cfg     Config
	handler RequestHandler
	logf    func(format string, args ...interface{})

	fr     *http2.Framer
	wb     *writeBuffer
	br     *bufReader
	hdr    *hpack.Encoder
	hdrBuf *bytes.Buffer

	streams map[uint32]*Stream
	flow    *flowctl

	settingsTimer *time.Timer
	settingsAcked bool

	timerFired chan timerEvent
	done       chan struct{}
}

type frameResult struct {
	frame http2.Frame
	err   error
}

type timerKind int

const (
	timerKindRead timerKind = iota
	timerKindWrite
)

type timerEvent struct {
	streamID uint32
	kind     timerKind
}

// New constructs a Session around an already-negotiated connection (TLS
// handshake, if any, has already completed and selected h2). Nothing is
// written to the wire until Serve is called.
func New(id int64, conn net.Conn, cfg Config, handler RequestHandler, logf func(string, ...interface{})) *Session {
	s := &Session{
		id:      id,
		conn:    conn,
		cfg:     cfg,
		handler: handler,
		logf:    logf,
		streams: make(map[uint32]*Stream),
		flow:    newFlowctl(),

		timerFired: make(chan timerEvent, 64),
		done:       make(chan struct{}),
	}
	s.wb = newWriteBuffer(conn)
	s.br = newBufReader(conn)
	s.fr = http2.NewFramer(s.wb, s.br)

	tableSize := uint32(4096)
	if cfg.HeaderTableSize >= 0 {
		tableSize = uint32(cfg.HeaderTableSize)
	}
	s.fr.ReadMetaHeaders = hpack.NewDecoder(tableSize, nil)

	s.hdrBuf = new(bytes.Buffer)
	s.hdr = hpack.NewEncoder(s.hdrBuf)

	return s
}

// ID returns the session's connection identifier.
func (s *Session) ID() int64 { return s.id }

// Serve runs the session to completion: it verifies the client preface,
// performs on_connect (initial SETTINGS + settings-ACK timer), then
// drives frame dispatch until a fatal error, GOAWAY, or socket closure.
// The underlying connection is closed before Serve returns.
func (s *Session) Serve() error {
	defer s.destroy()

	if err := s.readPreface(); err != nil {
		return err
	}
	if err := s.onConnect(); err != nil {
		return err
	}

	frames := make(chan frameResult)
	go s.readLoop(frames)

	for {
		select {
		case fr := <-frames:
			if fr.err != nil {
				return s.handleReadError(fr.err)
			}
			if err := s.dispatch(fr.frame); err != nil {
				return err
			}
			if err := s.OnWrite(); err != nil {
				return err
			}
		case ev := <-s.timerFired:
			if ev.kind == -1 {
				if s.settingsAcked {
					continue
				}
				s.terminateSession(http2.ErrCodeSettingsTimeout)
				s.OnWrite()
				return ErrSettingsTimeout
			}
			s.onStreamTimer(ev)
			if err := s.OnWrite(); err != nil {
				return err
			}
		case <-s.settingsTimerC():
			if s.settingsAcked {
				continue
			}
			s.terminateSession(http2.ErrCodeSettingsTimeout)
			s.OnWrite()
			return ErrSettingsTimeout
		case <-s.done:
			return nil
		}
	}
}

func (s *Session) settingsTimerC() <-chan time.Time {
	if s.settingsTimer == nil {
		return nil
	}
	return s.settingsTimer.C
}

func (s *Session) readPreface() error {
	buf := make([]byte, len(http2.ClientPreface))
	if _, err := io.ReadFull(s.br, buf); err != nil {
		return ErrBadPreface
	}
	if string(buf) != http2.ClientPreface {
		return ErrBadPreface
	}
	return nil
}

func (s *Session) readLoop(out chan<- frameResult) {
	for {
		f, err := s.fr.ReadFrame()
		select {
		case out <- frameResult{f, err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) handleReadError(err error) error {
	if err != io.EOF {
		s.logError(err)
	}
	return err
}

// onConnect creates the initial SETTINGS exchange and arms the
// settings-ACK timer, then flushes.
func (s *Session) onConnect() error {
	entries := []http2.Setting{{ID: http2.SettingMaxConcurrentStreams, Val: maxConcurrentStreams}}
	if s.cfg.HeaderTableSize >= 0 {
		entries = append(entries, http2.Setting{ID: http2.SettingHeaderTableSize, Val: uint32(s.cfg.HeaderTableSize)})
	}
	if err := s.fr.WriteSettings(entries...); err != nil {
		return err
	}
	s.settingsTimer = time.AfterFunc(settingsAckTimeout, func() {
		select {
		case s.timerFired <- timerEvent{kind: -1}:
		case <-s.done:
		}
	})
	return s.OnWrite()
}

// OnRead is kept for parity with the spec vocabulary: it is folded into
// Serve's select loop since a Go per-connection goroutine does not need a
// separate readability callback — net.Conn.Read already blocks the
// goroutine that owns this Session and no other.
func (s *Session) OnRead() error { return nil }

// OnWrite flushes any buffered codec output to the transport.
func (s *Session) OnWrite() error {
	return s.wb.Flush()
}

func (s *Session) dispatch(f http2.Frame) error {
	switch fr := f.(type) {
	case *http2.MetaHeadersFrame:
		return s.onHeaders(fr)
	case *http2.DataFrame:
		return s.onData(fr)
	case *http2.SettingsFrame:
		return s.onSettingsFrame(fr)
	case *http2.WindowUpdateFrame:
		return s.onWindowUpdate(fr)
	case *http2.PingFrame:
		return s.onPing(fr)
	case *http2.RSTStreamFrame:
		s.removeStream(fr.StreamID)
		return nil
	case *http2.GoAwayFrame:
		close(s.done)
		return nil
	case *http2.PriorityFrame, *http2.ContinuationFrame:
		return nil
	default:
		return nil
	}
}

func (s *Session) onHeaders(mh *http2.MetaHeadersFrame) error {
	st, exists := s.streams[mh.StreamID]
	if !exists {
		st = newStream(s, mh.StreamID)
		s.streams[mh.StreamID] = st
		s.flow.newStream(mh.StreamID)
	}
	for _, f := range mh.Fields {
		st.addHeader(f)
	}

	if !exists {
		s.armReadTimer(st)
		if strings.EqualFold(st.Expect(), "100-continue") {
			s.submitNonFinalResponse(st.id, "100")
		}
		if s.cfg.EarlyResponse {
			s.handler(s, st, true)
		}
	}

	if mh.StreamEnded() {
		st.remoteClosed = true
		s.disarmReadTimer(st)
		if !s.cfg.EarlyResponse {
			s.handler(s, st, true)
		}
		s.closeStreamIfDone(st)
	} else {
		s.rearmReadTimerIfPending(st)
	}
	return nil
}

func (s *Session) onData(df *http2.DataFrame) error {
	st := s.streams[df.StreamID]
	if st == nil {
		return nil
	}
	data := df.Data()
	if len(data) > 0 {
		if incr := s.flow.onDataReceived(int64(len(data))); incr > 0 {
			s.fr.WriteWindowUpdate(0, incr)
		}
	}
	if df.StreamEnded() {
		st.remoteClosed = true
		s.disarmReadTimer(st)
		if !s.cfg.EarlyResponse {
			s.handler(s, st, true)
		}
		s.closeStreamIfDone(st)
	} else {
		s.armReadTimer(st)
	}
	return nil
}

func (s *Session) onSettingsFrame(sf *http2.SettingsFrame) error {
	if sf.IsAck() {
		if !s.settingsAcked {
			s.settingsAcked = true
			if s.settingsTimer != nil {
				s.settingsTimer.Stop()
			}
		}
		return nil
	}
	sf.ForeachSetting(func(se http2.Setting) error {
		if se.ID == http2.SettingInitialWindowSize {
			s.flow.applyInitialWindowDelta(se.Val)
		}
		return nil
	})
	return s.fr.WriteSettingsAck()
}

func (s *Session) onWindowUpdate(wf *http2.WindowUpdateFrame) error {
	s.flow.onWindowUpdate(wf.StreamID, wf.Increment)
	if wf.StreamID == 0 {
		for _, st := range s.streams {
			if st.body != nil && !st.localClosed {
				if err := s.pumpBody(st); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if st, ok := s.streams[wf.StreamID]; ok && st.body != nil && !st.localClosed {
		return s.pumpBody(st)
	}
	return nil
}

func (s *Session) onPing(pf *http2.PingFrame) error {
	if pf.IsAck() {
		return nil
	}
	return s.fr.WritePing(true, pf.Data)
}

func (s *Session) onStreamTimer(ev timerEvent) {
	if ev.kind == -1 { // settings timer sentinel
		return
	}
	st, ok := s.streams[ev.streamID]
	if !ok {
		return
	}
	active := (ev.kind == timerKindRead && st.rTimerActive) || (ev.kind == timerKindWrite && st.wTimerActive)
	if !active {
		return
	}
	s.disarmReadTimer(st)
	s.disarmWriteTimer(st)
	s.submitRstStreamLocked(st, http2.ErrCodeInternal)
}

// SubmitResponse emits response headers and, if body is non-nil, begins
// streaming it as DATA frames.
func (s *Session) SubmitResponse(st *Stream, status string, extra []HeaderKV, body io.ReadCloser, bodyLen int64) error {
	fields := s.baseResponseFields(status)
	fields = append(fields, toHPACK(extra)...)

	endStream := body == nil
	if err := s.writeHeaders(st.id, fields, endStream); err != nil {
		return err
	}
	if endStream {
		st.localClosed = true
		s.disarmWriteTimer(st)
		s.closeStreamIfDone(st)
		return nil
	}
	st.body = body
	st.bodyLeft = bodyLen
	return s.pumpBody(st)
}

// SubmitNonFinalResponse is exported for router use when it needs to
// trigger a 1xx outside of the 100-continue path handled automatically at
// HEADERS time.
func (s *Session) SubmitNonFinalResponse(st *Stream, status string) error {
	return s.submitNonFinalResponse(st.id, status)
}

func (s *Session) submitNonFinalResponse(streamID uint32, status string) error {
	fields := []hpack.HeaderField{{Name: ":status", Value: status}}
	return s.writeHeaders(streamID, fields, false)
}

// SubmitPushPromise allocates a promised stream, synthesises its request
// pseudo-headers from the parent stream, records it, and passes it to the
// session's RequestHandler (with allowPush false) to generate its response.
func (s *Session) SubmitPushPromise(parent *Stream, path string) (*Stream, error) {
	scheme := "https"
	if parent.Scheme() == "http" {
		scheme = "http"
	}
	authority := parent.Authority()

	fields := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: path},
		{Name: ":scheme", Value: scheme},
		{Name: ":authority", Value: authority},
	}
	block, err := s.encodeHeaders(fields)
	if err != nil {
		return nil, err
	}

	promisedID := s.nextPushStreamID()
	if err := s.fr.WritePushPromise(http2.PushPromiseParam{
		StreamID:      parent.id,
		PromiseID:     promisedID,
		BlockFragment: block,
		EndHeaders:    true,
	}); err != nil {
		return nil, err
	}

	promised := newStream(s, promisedID)
	for _, f := range fields {
		promised.addHeader(f)
	}
	promised.remoteClosed = true
	s.streams[promisedID] = promised
	s.flow.newStream(promisedID)

	s.armWriteTimer(parent)
	s.rearmReadTimerIfPending(parent)

	s.handler(s, promised, false)
	return promised, nil
}

func (s *Session) nextPushStreamID() uint32 {
	// Server-initiated streams use even ids; find the next unused one.
	var maxEven uint32
	for id := range s.streams {
		if id%2 == 0 && id > maxEven {
			maxEven = id
		}
	}
	if maxEven == 0 {
		return 2
	}
	return maxEven + 2
}

// SubmitRstStream tears down a stream with the given error code.
func (s *Session) SubmitRstStream(st *Stream, code http2.ErrCode) error {
	return s.submitRstStreamLocked(st, code)
}

func (s *Session) submitRstStreamLocked(st *Stream, code http2.ErrCode) error {
	s.disarmReadTimer(st)
	s.disarmWriteTimer(st)
	err := s.fr.WriteRSTStream(st.id, code)
	s.removeStream(st.id)
	return err
}

// TerminateSession enqueues a GOAWAY for the given error code.
func (s *Session) TerminateSession(code http2.ErrCode) error {
	return s.terminateSession(code)
}

func (s *Session) terminateSession(code http2.ErrCode) error {
	var maxID uint32
	for id := range s.streams {
		if id > maxID {
			maxID = id
		}
	}
	return s.fr.WriteGoAway(maxID, code, nil)
}

func (s *Session) pumpBody(st *Stream) error {
	hasTrailers := len(s.cfg.Trailer) > 0
	for !st.localClosed {
		avail := s.flow.remoteWindow(st.id)
		if avail <= 0 {
			s.armWriteTimer(st)
			s.rearmReadTimerIfPending(st)
			return nil
		}
		chunk := int64(serverDataChunk)
		if avail < chunk {
			chunk = avail
		}
		buf := make([]byte, chunk)
		n, rerr := st.body.Read(buf)
		if rerr != nil && rerr != io.EOF {
			s.disarmReadTimer(st)
			s.disarmWriteTimer(st)
			s.submitRstStreamLocked(st, http2.ErrCodeInternal)
			return nil
		}
		st.bodyLeft -= int64(n)
		eof := rerr == io.EOF || n == 0 || st.bodyLeft <= 0

		if n > 0 || (eof && !hasTrailers) {
			endStream := eof && !hasTrailers
			if err := s.fr.WriteData(st.id, endStream, buf[:n]); err != nil {
				return err
			}
			if n > 0 {
				s.flow.consumeRemote(st.id, int64(n))
			}
			if endStream {
				st.localClosed = true
			}
			s.onFrameSent(st, endStream)
		}

		if eof {
			if hasTrailers {
				if err := s.submitTrailers(st); err != nil {
					return err
				}
				st.localClosed = true
				s.onFrameSent(st, true)
			}
			if !st.remoteClosed {
				if err := s.fr.WriteRSTStream(st.id, http2.ErrCodeNo); err != nil {
					return err
				}
				st.remoteClosed = true
			}
			s.closeStreamIfDone(st)
			return nil
		}
	}
	return nil
}

func (s *Session) submitTrailers(st *Stream) error {
	fields := toHPACK(s.cfg.Trailer)
	return s.writeHeaders(st.id, fields, true)
}

func (s *Session) onFrameSent(st *Stream, endStream bool) {
	if endStream {
		s.disarmWriteTimer(st)
		return
	}
	if s.flow.remoteWindow(st.id) <= 0 {
		s.rearmReadTimerIfPending(st)
		s.armWriteTimer(st)
	} else {
		s.rearmReadTimerIfPending(st)
		s.disarmWriteTimer(st)
	}
}

func (s *Session) baseResponseFields(status string) []hpack.HeaderField {
	date := ""
	if s.cfg.DateFn != nil {
		date = s.cfg.DateFn()
	}
	return []hpack.HeaderField{
		{Name: ":status", Value: status},
		{Name: "server", Value: s.cfg.ServerToken},
		{Name: "date", Value: date},
	}
}

func toHPACK(kvs []HeaderKV) []hpack.HeaderField {
	out := make([]hpack.HeaderField, 0, len(kvs))
	for _, kv := range kvs {
		out = append(out, hpack.HeaderField{Name: kv.Name, Value: kv.Value, Sensitive: kv.NoIndex})
	}
	return out
}

func (s *Session) encodeHeaders(fields []hpack.HeaderField) ([]byte, error) {
	s.hdrBuf.Reset()
	for _, f := range fields {
		if err := s.hdr.WriteField(f); err != nil {
			return nil, err
		}
	}
	block := make([]byte, s.hdrBuf.Len())
	copy(block, s.hdrBuf.Bytes())
	return block, nil
}

func (s *Session) writeHeaders(streamID uint32, fields []hpack.HeaderField, endStream bool) error {
	block, err := s.encodeHeaders(fields)
	if err != nil {
		return err
	}
	return s.fr.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: block,
		EndStream:     endStream,
		EndHeaders:    true,
		PadLength:     uint8(s.padLen(len(block))),
	})
}

func (s *Session) padLen(payloadLen int) int {
	if s.cfg.Padding <= 0 {
		return 0
	}
	want := s.cfg.Padding
	if want > 255 {
		want = 255
	}
	return want
}

func (s *Session) closeStreamIfDone(st *Stream) {
	if st.remoteClosed && st.localClosed {
		s.removeStream(st.id)
	}
}

func (s *Session) removeStream(id uint32) {
	st, ok := s.streams[id]
	if !ok {
		return
	}
	delete(s.streams, id)
	s.flow.dropStream(id)
	st.destroy()
}

func (s *Session) armReadTimer(st *Stream) {
	id := st.id
	if st.rTimer != nil {
		st.rTimer.Stop()
	}
	st.rTimer = time.AfterFunc(s.cfg.ReadTimeout, func() {
		select {
		case s.timerFired <- timerEvent{streamID: id, kind: timerKindRead}:
		case <-s.done:
		}
	})
	st.rTimerActive = true
}

func (s *Session) disarmReadTimer(st *Stream) {
	if st.rTimer != nil {
		st.rTimer.Stop()
	}
	st.rTimerActive = false
}

func (s *Session) rearmReadTimerIfPending(st *Stream) {
	if st.rTimerActive {
		s.armReadTimer(st)
	}
}

func (s *Session) armWriteTimer(st *Stream) {
	id := st.id
	if st.wTimer != nil {
		st.wTimer.Stop()
	}
	st.wTimer = time.AfterFunc(s.cfg.WriteTimeout, func() {
		select {
		case s.timerFired <- timerEvent{streamID: id, kind: timerKindWrite}:
		case <-s.done:
		}
	})
	st.wTimerActive = true
}

func (s *Session) disarmWriteTimer(st *Stream) {
	if st.wTimer != nil {
		st.wTimer.Stop()
	}
	st.wTimerActive = false
}

func (s *Session) destroy() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.settingsTimer != nil {
		s.settingsTimer.Stop()
	}
	for id, st := range s.streams {
		delete(s.streams, id)
		st.destroy()
	}
	s.conn.Close()
}

func (s *Session) logError(err error) {
	if s.logf != nil {
		s.logf("[id=%d] %v", s.id, err)
	}
}
