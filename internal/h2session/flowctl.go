package h2session

// flowctl accounts for HTTP/2 flow-control windows. golang.org/x/net/http2
// gives us frame parsing and HPACK but, unlike a turnkey session library,
// no bookkeeping of its own — this is the "flow-control accounting" a
// black-box codec would normally supply, implemented here instead.
type flowctl struct {
	remoteConnWindow   int64
	remoteInitWindow   int64 // client's SETTINGS_INITIAL_WINDOW_SIZE, applies to new streams
	remoteStreamWindow map[uint32]int64

	localConnWindow int64 // bytes we've told the peer it may still send us
}

const defaultInitialWindow = 65535
const localWindowHighWater = 32 * 1024 // replenish local window once consumed past this

func newFlowctl() *flowctl {
	return &flowctl{
		remoteConnWindow:    defaultInitialWindow,
		remoteInitWindow:    defaultInitialWindow,
		remoteStreamWindow:  make(map[uint32]int64),
		localConnWindow:     defaultInitialWindow,
	}
}

func (f *flowctl) newStream(id uint32) {
	f.remoteStreamWindow[id] = f.remoteInitWindow
}

func (f *flowctl) dropStream(id uint32) {
	delete(f.remoteStreamWindow, id)
}

// applyInitialWindowDelta adjusts every open stream's remote window by
// the delta between the client's new and old SETTINGS_INITIAL_WINDOW_SIZE,
// per RFC 7540 §6.9.2.
func (f *flowctl) applyInitialWindowDelta(newVal uint32) {
	delta := int64(newVal) - f.remoteInitWindow
	f.remoteInitWindow = int64(newVal)
	for id, w := range f.remoteStreamWindow {
		f.remoteStreamWindow[id] = w + delta
	}
}

func (f *flowctl) onWindowUpdate(streamID uint32, incr uint32) {
	if streamID == 0 {
		f.remoteConnWindow += int64(incr)
		return
	}
	f.remoteStreamWindow[streamID] += int64(incr)
}

// remoteWindow returns the smaller of the connection- and stream-level
// remote windows, i.e. how many bytes may still be sent on this stream
// before the session is blocked by flow control.
func (f *flowctl) remoteWindow(streamID uint32) int64 {
	sw, ok := f.remoteStreamWindow[streamID]
	if !ok {
		sw = 0
	}
	if f.remoteConnWindow < sw {
		return f.remoteConnWindow
	}
	return sw
}

func (f *flowctl) consumeRemote(streamID uint32, n int64) {
	f.remoteConnWindow -= n
	f.remoteStreamWindow[streamID] -= n
}

// onDataReceived accounts for inbound DATA bytes (discarded content, but
// still flow-controlled) and reports how much connection-level window
// should be returned to the peer via WINDOW_UPDATE, if any.
func (f *flowctl) onDataReceived(n int64) uint32 {
	f.localConnWindow -= n
	if f.localConnWindow > localWindowHighWater {
		return 0
	}
	incr := int64(defaultInitialWindow) - f.localConnWindow
	if incr <= 0 {
		return 0
	}
	f.localConnWindow += incr
	return uint32(incr)
}
