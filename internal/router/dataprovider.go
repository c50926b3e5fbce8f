package router

import (
	"io"
	"os"
)

// openFileBody opens path for reading and stats it in one step. It is the
// Go-native stand-in for the original's fd-based data provider: there the
// codec pulled bytes from an open file descriptor via a read callback on
// demand, EOF-flagging the final chunk and symmetrically RST-ing the
// stream if the peer hadn't already closed its side. h2session.Session
// drives that same pull loop itself against the io.ReadCloser returned
// here, so this function's only job is handing back an open file and its
// size.
func openFileBody(path string) (io.ReadCloser, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, fi, nil
}
