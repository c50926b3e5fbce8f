package h2session

import "testing"

func TestNewStreamUsesCurrentRemoteInitWindow(t *testing.T) {
	f := newFlowctl()
	f.applyInitialWindowDelta(1000)
	f.newStream(1)
	if got := f.remoteStreamWindow[1]; got != 1000 {
		t.Fatalf("remoteStreamWindow[1] = %d, want 1000", got)
	}
}

func TestApplyInitialWindowDeltaAdjustsOpenStreams(t *testing.T) {
	f := newFlowctl()
	f.newStream(1)
	f.newStream(3)
	before := f.remoteStreamWindow[1]

	f.applyInitialWindowDelta(uint32(defaultInitialWindow) + 100)

	if got := f.remoteStreamWindow[1]; got != before+100 {
		t.Fatalf("remoteStreamWindow[1] = %d, want %d", got, before+100)
	}
	if got := f.remoteStreamWindow[3]; got != before+100 {
		t.Fatalf("remoteStreamWindow[3] = %d, want %d", got, before+100)
	}
}

func TestRemoteWindowIsMinOfConnAndStream(t *testing.T) {
	f := newFlowctl()
	f.newStream(1)
	f.remoteConnWindow = 100
	f.remoteStreamWindow[1] = 5000

	if got := f.remoteWindow(1); got != 100 {
		t.Fatalf("remoteWindow() = %d, want 100", got)
	}

	f.remoteConnWindow = 9000
	f.remoteStreamWindow[1] = 42
	if got := f.remoteWindow(1); got != 42 {
		t.Fatalf("remoteWindow() = %d, want 42", got)
	}
}

func TestConsumeRemoteDecrementsBothWindows(t *testing.T) {
	f := newFlowctl()
	f.newStream(1)
	connBefore := f.remoteConnWindow
	streamBefore := f.remoteStreamWindow[1]

	f.consumeRemote(1, 500)

	if f.remoteConnWindow != connBefore-500 {
		t.Fatalf("remoteConnWindow = %d, want %d", f.remoteConnWindow, connBefore-500)
	}
	if f.remoteStreamWindow[1] != streamBefore-500 {
		t.Fatalf("remoteStreamWindow[1] = %d, want %d", f.remoteStreamWindow[1], streamBefore-500)
	}
}

func TestOnWindowUpdateConnLevel(t *testing.T) {
	f := newFlowctl()
	before := f.remoteConnWindow
	f.onWindowUpdate(0, 1000)
	if got := f.remoteConnWindow; got != before+1000 {
		t.Fatalf("remoteConnWindow = %d, want %d", got, before+1000)
	}
}

func TestOnDataReceivedWithholdsIncrementAboveHighWater(t *testing.T) {
	f := newFlowctl()
	incr := f.onDataReceived(100)
	if incr != 0 {
		t.Fatalf("onDataReceived() = %d, want 0 while above high-water mark", incr)
	}
}

func TestOnDataReceivedRepleneshesBelowHighWater(t *testing.T) {
	f := newFlowctl()
	consumed := int64(defaultInitialWindow) - localWindowHighWater + 1
	incr := f.onDataReceived(consumed)
	if incr == 0 {
		t.Fatalf("onDataReceived() = 0, want a positive top-up once below the high-water mark")
	}
	if f.localConnWindow != defaultInitialWindow {
		t.Fatalf("localConnWindow after top-up = %d, want %d", f.localConnWindow, defaultInitialWindow)
	}
}

func TestDropStreamRemovesWindowEntry(t *testing.T) {
	f := newFlowctl()
	f.newStream(1)
	f.dropStream(1)
	if _, ok := f.remoteStreamWindow[1]; ok {
		t.Fatalf("remoteStreamWindow[1] still present after dropStream")
	}
}
