package pool

import "net"

// WorkKind tags the variant carried by a WorkItem.
type WorkKind int

const (
	// KindNewConn is a freshly accepted, not-yet-classified connection.
	KindNewConn WorkKind = iota
	// KindAnnounce is a post-barrier task: send winners and close.
	KindAnnounce
	// KindStop is a poison pill terminating a worker.
	KindStop
)

// WorkItem is a unit of work consumed by a worker from the shared
// queue. A work item transfers ownership of Conn to whichever worker
// dequeues it.
type WorkItem struct {
	Kind    WorkKind
	Conn    net.Conn
	Agency  uint8
	Winners []uint32
}

// ParkedConn pairs an agency with the connection it parked on while
// waiting for the lottery.
type ParkedConn struct {
	Agency uint8
	Conn   net.Conn
}
