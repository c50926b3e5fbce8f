package h2session

import (
	"bufio"
	"net"

	"github.com/iridium2/h2d/internal/wbuf"
)

// writeBuffer adapts wbuf.WriteBuffer to io.Writer, flushing to the
// underlying connection whenever the buffer fills and on explicit Flush.
// This is the "write_fn" half of the original's read/write function-pointer
// pair; since crypto/tls.Conn satisfies net.Conn identically to a plain
// socket, there is no separate TLS/clear write path to dispatch between.
type writeBuffer struct {
	conn net.Conn
	buf  *wbuf.WriteBuffer
}

func newWriteBuffer(conn net.Conn) *writeBuffer {
	return &writeBuffer{conn: conn, buf: wbuf.New()}
}

func (w *writeBuffer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := w.buf.Write(p)
		total += n
		p = p[n:]
		if w.buf.WLeft() == 0 {
			if err := w.Flush(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// Flush writes any buffered bytes to the connection and resets the buffer.
func (w *writeBuffer) Flush() error {
	if w.buf.RLeft() == 0 {
		return nil
	}
	for w.buf.RLeft() > 0 {
		n, err := w.conn.Write(w.buf.Bytes())
		if err != nil {
			return err
		}
		w.buf.Drain(n)
	}
	w.buf.Reset()
	return nil
}

// bufReader is a bufio.Reader sized to match the roughly 8KiB chunks the
// original drains per readable event. The framer reads frames from it
// directly; Session.readPreface consumes the leading client preface bytes
// from the same reader before the framer ever sees the stream, since
// golang.org/x/net/http2.Framer assumes the preface has already been
// stripped.
type bufReader = bufio.Reader

func newBufReader(conn net.Conn) *bufReader {
	return bufio.NewReaderSize(conn, readChunkHint)
}
