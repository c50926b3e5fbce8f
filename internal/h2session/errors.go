package h2session

import "errors"

// ErrBadPreface is returned when the client's connection preface is
// malformed. It is treated as a silent fatal: logged nowhere, just torn
// down.
var ErrBadPreface = errors.New("h2session: bad client preface")

// ErrALPNMismatch names the case of a TLS connection completing its
// handshake without negotiating the h2 protocol. Nothing in this package
// returns it; transport.Handshake reports that case with its own
// *transport.ErrALPNMismatch.
var ErrALPNMismatch = errors.New("h2session: client did not negotiate h2")

// ErrSettingsTimeout is returned when the client fails to acknowledge the
// server's initial SETTINGS frame within the settings-ACK deadline.
var ErrSettingsTimeout = errors.New("h2session: settings ack timeout")

// ErrTemporalCallbackFailure signals a per-stream failure (e.g. a body
// read error) that should RST only the affected stream; the session
// survives.
var ErrTemporalCallbackFailure = errors.New("h2session: temporal callback failure")

// ErrCallbackFailure signals a failure serious enough that the codec
// should be asked to abort the whole session.
var ErrCallbackFailure = errors.New("h2session: callback failure")

// IsFatal reports whether err should cause the owning Session to be
// destroyed, as opposed to just the stream it originated from.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrTemporalCallbackFailure)
}
