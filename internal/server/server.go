// Package server runs the TCP accept loop and drives the lottery
// through its four phases: Accepting, Barrier, Draining, Stopped.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiuba-distribuidos/lottery-server/internal/logging"
	"github.com/fiuba-distribuidos/lottery-server/internal/metrics"
	"github.com/fiuba-distribuidos/lottery-server/internal/pool"
	"github.com/fiuba-distribuidos/lottery-server/internal/store"
)

const (
	defaultAcceptTimeout = 10 * time.Second
	defaultWorkerCount   = 5
)

// Server owns the listener and the worker pool, and drives the lottery
// state machine: it accepts connections until acceptTimeout elapses
// with no new connection, then runs the barrier (score the store,
// drain parked agencies, announce winners) and stops.
//
// There is no explicit "all agencies submitted" signal on the wire;
// idle-accept is the only barrier trigger. That is fragile against a
// slow agency arriving after the window closes, but it requires no
// protocol change to fix.
type Server struct {
	mu       sync.RWMutex
	addr     string
	listener net.Listener

	acceptTimeout time.Duration
	workerCount   int
	winningNumber uint16

	store *store.Store
	pool  *pool.Pool

	logger    *slog.Logger
	readyOnce sync.Once
	readyCh   chan struct{}

	totalAccepted atomic.Uint64
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithListenAddr sets the TCP address to listen on, e.g. ":12345".
func WithListenAddr(a string) ServerOption { return func(s *Server) { s.addr = a } }

// WithAcceptTimeout sets how long Accept may block with no new
// connection before the server treats submission as finished and
// enters the barrier phase.
func WithAcceptTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.acceptTimeout = d
		}
	}
}

// WithWorkerCount sets the fixed worker pool size.
func WithWorkerCount(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithWinningNumber sets the number scored against every stored bet at
// barrier time.
func WithWinningNumber(n uint16) ServerOption { return func(s *Server) { s.winningNumber = n } }

// WithStore sets the backing bet store.
func WithStore(st *store.Store) ServerOption { return func(s *Server) { s.store = st } }

// WithLogger overrides the default global logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer builds a Server from options, defaulting any field left
// unset.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		acceptTimeout: defaultAcceptTimeout,
		workerCount:   defaultWorkerCount,
		readyCh:       make(chan struct{}),
		logger:        logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.addr == "" {
		s.addr = ":0"
	}
	if s.store == nil {
		s.store = store.New("bets.csv")
	}
	s.pool = pool.New(s.workerCount, s.store, s.winningNumber, s.logger)
	return s
}

// Addr returns the address the listener is bound to, valid only after
// Serve has started listening.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Ready closes once the listener is bound and accepting.
func (s *Server) Ready() <-chan struct{} { return s.readyCh }

// Serve runs the full lifecycle: listen, accept until the idle
// timeout fires or ctx is cancelled, then barrier, drain, and stop.
// It returns nil on a clean shutdown (ctx cancellation or a completed
// lottery run) and a wrapped error on a fatal listener fault.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.RLock()
	addr := s.addr
	s.mu.RUnlock()

	ln, err := listen(ctx, addr)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(metrics.ErrOther)
		return wrap
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return fmt.Errorf("%w: listener is not a *net.TCPListener", ErrFatal)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.listener = ln
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.readyCh) })
	metrics.SetReadinessFunc(func() bool { return true })
	s.logger.Info("tcp_listen", "addr", s.Addr(), "accept_timeout", s.acceptTimeout, "workers", s.workerCount)

	s.pool.Start()

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stopWatch:
		}
	}()

	for {
		if err := tcpLn.SetDeadline(time.Now().Add(s.acceptTimeout)); err != nil {
			s.pool.CloseParked()
			s.pool.Stop()
			if ctx.Err() != nil {
				s.logger.Info("shutdown_requested")
				return nil
			}
			return fmt.Errorf("%w: %v", ErrAccept, err)
		}

		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.logger.Info("accept_idle_barrier", "idle_for", s.acceptTimeout)
				break
			}
			select {
			case <-ctx.Done():
				s.logger.Info("shutdown_requested")
				s.pool.CloseParked()
				s.pool.Stop()
				return nil
			default:
			}
			wrap := fmt.Errorf("%w: %v", ErrAccept, err)
			metrics.IncError(metrics.ErrOther)
			s.pool.CloseParked()
			s.pool.Stop()
			return wrap
		}

		s.totalAccepted.Add(1)
		metrics.IncConnectionAccepted()
		s.pool.Submit(pool.WorkItem{Kind: pool.KindNewConn, Conn: conn})
	}

	return s.runBarrier()
}

// runBarrier computes winners under the store lock, announces them to
// every parked agency, and stops the worker pool. It is the Barrier
// and Draining phases of the state machine; Serve has already left
// Accepting by the time this runs.
func (s *Server) runBarrier() error {
	s.logger.Info("barrier_start", "accepted", s.totalAccepted.Load())

	parked, agency, err := s.pool.Barrier(s.winningNumber)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrFatal, err)
		metrics.IncError(metrics.ClassifyError(err))
		s.logger.Error("barrier_failed", "error", wrap)
		s.pool.CloseParked()
		s.pool.Stop()
		return wrap
	}

	s.logger.Info("draining_parked", "count", len(parked))
	for _, pc := range parked {
		winners := agency.WinnersOf(pc.Agency)
		s.pool.Submit(pool.WorkItem{
			Kind:    pool.KindAnnounce,
			Conn:    pc.Conn,
			Agency:  pc.Agency,
			Winners: winners,
		})
	}

	s.pool.Stop()
	s.logger.Info("stopped", "accepted", s.totalAccepted.Load())
	return nil
}

// Shutdown closes the listener, unblocking a pending Accept. Serve's
// own ctx-cancellation watcher makes this redundant in normal
// operation; it exists for callers that hold a Server reference
// without the Serve-owning context, such as tests.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	if err := ln.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrShutdown, err)
	}
	return nil
}
