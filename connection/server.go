package connection

import (
	"crypto/tls"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ciena/ofcore/datapath"
	"github.com/ciena/ofcore/dispatch"
	"github.com/ciena/ofcore/metrics"
)

// Server accepts switch connections and runs each through its
// lifecycle. It also owns the single sweep timer that expires pending
// transactions across every connection, so a connection whose read loop
// is wedged still times its callers out.
type Server struct {
	addr       string
	cfg        Config
	dispatcher *dispatch.Dispatcher
	paths      *datapath.Registry
	tlsConfig  *tls.Config

	mu        sync.Mutex
	conns     map[*Conn]struct{}
	listener  net.Listener
	done      chan struct{}
	closeOnce sync.Once
}

// NewServer builds a server listening on addr once ListenAndServe is
// called. A nil tlsConfig means plain TCP.
func NewServer(addr string, cfg Config, d *dispatch.Dispatcher, paths *datapath.Registry, tlsConfig *tls.Config) *Server {
	return &Server{
		addr:       addr,
		cfg:        cfg.withDefaults(),
		dispatcher: d,
		paths:      paths,
		tlsConfig:  tlsConfig,
		conns:      make(map[*Conn]struct{}),
		done:       make(chan struct{}),
	}
}

// ListenAndServe blocks on the accept loop until Close is called or the
// listener fails.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"listen": s.addr,
		"tls":    s.tlsConfig != nil,
	}).Info("Accepting switch connections")

	go s.sweepLoop()

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			log.WithError(err).Error("Accept failed")
			return err
		}
		log.WithFields(log.Fields{
			"remote": nc.RemoteAddr().String(),
		}).Debug("Switch transport connected")

		c := newConn(nc, s.cfg, s.dispatcher, s.paths)
		s.track(c)
		go func() {
			c.serve()
			s.untrack(c)
		}()
	}
}

// Addr returns the bound listener address, nil before ListenAndServe
// has bound it. Useful when listening on an ephemeral port.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) track(c *Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// sweepLoop expires pending transactions on every live connection. One
// timer for the process keeps the cost flat in the connection count.
func (s *Server) sweepLoop() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			conns := make([]*Conn, 0, len(s.conns))
			for c := range s.conns {
				conns = append(conns, c)
			}
			s.mu.Unlock()
			for _, c := range conns {
				if n := c.xacts.Sweep(now); n > 0 {
					metrics.TransactionTimeouts.Add(float64(n))
				}
			}
		}
	}
}

// Close stops accepting and tears down every live connection.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		ln := s.listener
		conns := make([]*Conn, 0, len(s.conns))
		for c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()
		if ln != nil {
			_ = ln.Close()
		}
		for _, c := range conns {
			c.Close(ErrServerClosed)
		}
	})
	return nil
}
