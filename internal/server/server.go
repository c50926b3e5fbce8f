// Package server wires configuration, transport, the reactor/dispatch
// worker pool, and the request router together into a running listener,
// the Go counterpart of the original HttpServer::run() bootstrap.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/iridium2/h2d/internal/config"
	"github.com/iridium2/h2d/internal/dispatch"
	"github.com/iridium2/h2d/internal/h2session"
	"github.com/iridium2/h2d/internal/logging"
	"github.com/iridium2/h2d/internal/reactor"
	"github.com/iridium2/h2d/internal/router"
	"github.com/iridium2/h2d/internal/transport"
)

// ServerToken is the product name in every response's server header,
// which carries ServerToken + "/" + Version.
const ServerToken = "h2d"

// Version follows ServerToken in the server header and is surfaced by the
// CLI's --version flag.
const Version = "1.0.0"

// Server owns the listener, worker pool, and shared per-connection
// configuration for one running instance.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	ln       net.Listener
	tlsConf  *tls.Config
	workers  []*reactor.Worker
	dispatch *dispatch.Dispatcher
	router   *router.Router
	dates    *reactor.DateCache
	trailer  []h2session.HeaderKV

	idMu   sync.Mutex
	nextID int64
}

// New builds a Server from cfg. It opens the listener and, if TLS is
// enabled, constructs the TLS configuration, but does not start accepting
// connections until Run is called.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	ln, err := transport.Listen(cfg)
	if err != nil {
		return nil, err
	}

	var tlsConf *tls.Config
	if !cfg.NoTLS() {
		tlsConf, err = transport.NewTLSConfig(cfg)
		if err != nil {
			ln.Close()
			return nil, err
		}
	}

	dates := reactor.NewDateCache()

	trailer := make([]h2session.HeaderKV, len(cfg.Trailer))
	for i, t := range cfg.Trailer {
		trailer[i] = h2session.HeaderKV{Name: t.Name, Value: t.Value}
	}

	rt := router.New(router.Config{
		Htdocs:      cfg.Server.Htdocs,
		Push:        cfg.Push,
		Trailer:     trailer,
		ErrorGzip:   cfg.Errors.Gzip,
		ServerToken: ServerToken + "/" + Version,
		Port:        cfg.Server.Port,
		Logf:        logger.Errorf,
	})

	numWorker := cfg.Server.NumWorker
	if numWorker < 1 {
		numWorker = 1
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		ln:      ln,
		tlsConf: tlsConf,
		router:  rt,
		dates:   dates,
		trailer: trailer,
	}

	workers := make([]*reactor.Worker, numWorker)
	for i := range workers {
		workers[i] = reactor.New(i, s.handleConnection)
	}
	s.workers = workers
	s.dispatch = dispatch.New(workers)

	return s, nil
}

// Run starts every worker and accepts connections until the listener is
// closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	for _, w := range s.workers {
		go w.Run()
	}

	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.shutdownWorkers()
				return nil
			default:
				s.logger.Errorf("accept: %v", err)
				return err
			}
		}
		if s.tlsConf != nil {
			conn = tls.Server(conn, s.tlsConf)
		}
		s.dispatch.Dispatch(conn)
	}
}

// Shutdown closes the listener and signals every worker to stop. Each
// worker's Run waits for its in-flight connections before returning;
// Shutdown itself does not wait for them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ln.Close()
	done := make(chan struct{})
	go func() {
		s.shutdownWorkers()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) shutdownWorkers() {
	for _, w := range s.workers {
		w.Shutdown()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	negotiated, err := transport.Handshake(conn)
	if err != nil {
		s.logger.Errorf("handshake from %s: %v", conn.RemoteAddr(), err)
		return
	}

	id := s.allocSessionID()
	sessCfg := h2session.Config{
		ReadTimeout:     time.Duration(s.cfg.Timeouts.StreamRead * float64(time.Second)),
		WriteTimeout:    time.Duration(s.cfg.Timeouts.StreamWrite * float64(time.Second)),
		Padding:         s.cfg.HTTP2.Padding,
		HeaderTableSize: s.cfg.HTTP2.HeaderTableSize,
		EarlyResponse:   s.cfg.HTTP2.EarlyResponse,
		Trailer:         s.trailer,
		ServerToken:     ServerToken + "/" + Version,
		DateFn:          s.dates.Get,
	}

	sess := h2session.New(id, negotiated, sessCfg, s.router.Handle, s.logger.Errorf)
	if err := sess.Serve(); err != nil && !errors.Is(err, h2session.ErrBadPreface) {
		s.logger.Errorf("[id=%d] session ended: %v", id, err)
	}
}

// allocSessionID hands out increasing identifiers, wrapping back to 1
// rather than going negative once it would overflow int64 — the Go
// analogue of the original's next_session_id_ wraparound at INT64_MAX.
func (s *Server) allocSessionID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.nextID++
	if s.nextID <= 0 {
		s.nextID = 1
	}
	return s.nextID
}
