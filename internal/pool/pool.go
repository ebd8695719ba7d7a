// Package pool implements the fixed-size worker pool that serializes
// bet persistence, parks agencies waiting for the lottery, and fans out
// winner announcements at barrier time.
package pool

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/fiuba-distribuidos/lottery-server/internal/bet"
	"github.com/fiuba-distribuidos/lottery-server/internal/lottery"
	"github.com/fiuba-distribuidos/lottery-server/internal/metrics"
	"github.com/fiuba-distribuidos/lottery-server/internal/protocol"
	"github.com/fiuba-distribuidos/lottery-server/internal/store"
	"github.com/fiuba-distribuidos/lottery-server/internal/wire"
)

// Pool owns the shared work queue and the per-agency parked-connection
// registry. Workers are goroutines reading from a single channel; the
// store is guarded by one mutex shared across all workers.
type Pool struct {
	size int

	workQ   chan WorkItem
	parkedQ chan ParkedConn

	st            *store.Store
	storeMu       sync.Mutex
	winningNumber uint16

	parkedMu sync.Mutex
	parked   map[uint8]net.Conn

	connWG sync.WaitGroup

	logger *slog.Logger
	wg     sync.WaitGroup
}

// New returns a Pool with size workers, sized queues of capacity size,
// persisting to st. winningNumber is stored on the Pool, but Barrier
// scores against the winning number passed to it.
func New(size int, st *store.Store, winningNumber uint16, logger *slog.Logger) *Pool {
	return &Pool{
		size:          size,
		workQ:         make(chan WorkItem, size),
		parkedQ:       make(chan ParkedConn, size),
		st:            st,
		winningNumber: winningNumber,
		parked:        make(map[uint8]net.Conn),
		logger:        logger,
	}
}

// Start launches the fixed pool of worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.runWorker()
	}
}

// Submit enqueues a unit of work, blocking if the queue is full. A
// KindNewConn item is tracked until its handler completes, so Barrier
// can wait for every already-accepted connection to finish before it
// reads the store.
func (p *Pool) Submit(item WorkItem) {
	if item.Kind == KindNewConn {
		p.connWG.Add(1)
	}
	p.workQ <- item
	metrics.SetWorkQueueDepth(len(p.workQ))
}

// Barrier waits for every in-flight connection handler to finish, then
// takes the store lock once to compute winners, so the barrier read and
// any concurrent Append never interleave. It returns the drained parked
// connections alongside the computed winners.
func (p *Pool) Barrier(winningNumber uint16) ([]ParkedConn, *lottery.Agency, error) {
	p.connWG.Wait()

	p.storeMu.Lock()
	agency := lottery.New(winningNumber)
	err := agency.DetermineWinners(p.st)
	p.storeMu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	return p.DrainParked(), agency, nil
}

// DrainParked removes and returns every connection currently parked,
// emptying the registry. Each parked agency holds one entry in parkedQ;
// a re-park replaces the connection in p.parked without enqueueing a
// second entry, so each drained entry is resolved to the agency's live
// connection and a closed connection from a prior park never reaches
// the announce fan-out. Called once, from the barrier phase.
func (p *Pool) DrainParked() []ParkedConn {
	var out []ParkedConn
	for {
		select {
		case pc := <-p.parkedQ:
			p.parkedMu.Lock()
			cur, ok := p.parked[pc.Agency]
			if ok {
				delete(p.parked, pc.Agency)
			}
			p.parkedMu.Unlock()
			if ok {
				out = append(out, ParkedConn{Agency: pc.Agency, Conn: cur})
			}
		default:
			metrics.SetParkedConnections(0)
			return out
		}
	}
}

// CloseParked closes every connection still parked without announcing
// winners, used during shutdown before the barrier fires.
func (p *Pool) CloseParked() {
	for _, pc := range p.DrainParked() {
		_ = pc.Conn.Close()
	}
}

// Stop enqueues one Stop item per worker and waits for all of them to
// exit. Idempotent is not required: callers invoke it exactly once per
// pool lifetime.
func (p *Pool) Stop() {
	for i := 0; i < p.size; i++ {
		p.workQ <- WorkItem{Kind: KindStop}
	}
	p.wg.Wait()
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	for item := range p.workQ {
		metrics.SetWorkQueueDepth(len(p.workQ))
		switch item.Kind {
		case KindStop:
			return
		case KindAnnounce:
			p.handleAnnounce(item)
		case KindNewConn:
			p.handleNewConn(item.Conn)
			p.connWG.Done()
		}
	}
}

func (p *Pool) handleAnnounce(item WorkItem) {
	payload := bet.EncodeWinners(item.Winners)
	if err := wire.SendAll(item.Conn, payload); err != nil {
		p.logger.Error("winners_announce_failed", "agency", item.Agency, "error", err)
		metrics.IncError(metrics.ClassifyError(err))
	} else {
		metrics.IncWinnersAnnounced()
		p.logger.Info("winners_announced", "action", "winners_announced", "result", "success",
			"agency", item.Agency, "winners", len(item.Winners))
	}
	_ = item.Conn.Close()
}

func (p *Pool) handleNewConn(conn net.Conn) {
	payload, err := wire.RecvFrame(conn)
	if err != nil {
		p.logger.Warn("receive_message_failed", "error", err)
		metrics.IncError(metrics.ClassifyError(err))
		_ = conn.Close()
		return
	}

	msg, err := protocol.Decode(payload)
	if err != nil {
		p.logger.Warn("bets_received", "action", "apuesta_recibida", "result", "fail", "error", err)
		metrics.IncError(metrics.ClassifyError(err))
		metrics.IncBatchRejected()
		p.sendBestEffortReject(conn)
		_ = conn.Close()
		return
	}

	switch msg.Kind {
	case protocol.KindSubmitBets:
		p.handleSubmitBets(conn, msg.Bets)
	case protocol.KindWaitingForLottery:
		p.handleWaitingForLottery(conn, msg.Agency)
	}
}

func (p *Pool) handleSubmitBets(conn net.Conn, bets []bet.Bet) {
	if err := p.appendBets(bets); err != nil {
		p.logger.Error("bets_received", "action", "apuesta_recibida", "result", "fail", "error", err)
		metrics.IncError(metrics.ClassifyError(err))
		metrics.IncBatchRejected()
		p.sendBestEffortReject(conn)
		_ = conn.Close()
		return
	}

	metrics.IncBatchAccepted()
	metrics.AddBetsReceived(len(bets))
	p.logger.Info("bets_received", "action", "apuesta_recibida", "result", "success", "count", len(bets))

	ack := bet.EncodeBetsAck(int32(len(bets)))
	if err := wire.SendAll(conn, ack); err != nil {
		p.logger.Warn("ack_send_failed", "error", err)
		metrics.IncError(metrics.ClassifyError(err))
	}
	_ = conn.Close()
}

func (p *Pool) appendBets(bets []bet.Bet) error {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()
	if err := p.st.Append(bets); err != nil {
		return fmt.Errorf("append bets: %w", err)
	}
	return nil
}

func (p *Pool) handleWaitingForLottery(conn net.Conn, agency uint8) {
	p.parkedMu.Lock()
	prev, reparked := p.parked[agency]
	if reparked {
		_ = prev.Close()
		metrics.IncAgencyReparked()
		p.logger.Info("agency_reparked", "action", "agencia_esperando_sorteo", "result", "replaced", "agency", agency)
	}
	p.parked[agency] = conn
	n := len(p.parked)
	p.parkedMu.Unlock()

	metrics.IncAgencyParked()
	metrics.SetParkedConnections(n)
	p.logger.Info("agency_parked", "action", "agencia_esperando_sorteo", "result", "success", "agency", agency)

	if reparked {
		// The agency already holds its entry in parkedQ; DrainParked
		// resolves it to the connection now in p.parked.
		return
	}

	select {
	case p.parkedQ <- ParkedConn{Agency: agency, Conn: conn}:
	default:
		// parkedQ is sized to the pool (== agency population); a full
		// queue here means more distinct agencies parked than the
		// population the server was configured for.
		p.logger.Error("parked_queue_full", "agency", agency)
		_ = conn.Close()
	}
}

func (p *Pool) sendBestEffortReject(conn net.Conn) {
	_ = wire.SendAll(conn, bet.EncodeBetsAck(bet.RejectedAck))
}
