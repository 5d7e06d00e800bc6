package relay

import (
	"errors"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
)

var (
	ErrDuplicateParticipant = errors.New("participant already registered")
	ErrParticipantClosed    = errors.New("participant already unregistered")
	ErrCallFull             = errors.New("call is full")
)

// Participant is the relay side of one client connection. Its outbound queue
// is drained by the connection's write loop.
type Participant struct {
	ID     string
	CallID string

	send   chan []byte
	closed bool
}

// NewParticipant creates a participant with an outbound queue of queueSize
// messages.
func NewParticipant(id, callID string, queueSize int) *Participant {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Participant{
		ID:     id,
		CallID: callID,
		send:   make(chan []byte, queueSize),
	}
}

// Outbound returns the queue of messages to write to the connection. It is
// closed once the participant is unregistered.
func (p *Participant) Outbound() <-chan []byte {
	return p.send
}

// Registry tracks the connected participants of every call. Participants only
// ever receive messages from other participants of the same call id.
type Registry struct {
	deadlock.RWMutex

	calls   map[string]map[string]*Participant
	total   int
	logger  logrus.FieldLogger
	metrics *Metrics
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(logger logrus.FieldLogger, metrics *Metrics) *Registry {
	return &Registry{
		calls:   make(map[string]map[string]*Participant),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds p to its call.
func (r *Registry) Register(p *Participant) error {
	return r.RegisterLimited(p, 0)
}

// RegisterLimited adds p to its call unless the call already holds limit
// participants. A limit of zero or less means no limit.
func (r *Registry) RegisterLimited(p *Participant, limit int) error {
	r.Lock()
	defer r.Unlock()

	if p.closed {
		return ErrParticipantClosed
	}
	peers, exists := r.calls[p.CallID]
	if limit > 0 && len(peers) >= limit {
		return ErrCallFull
	}
	if !exists {
		peers = make(map[string]*Participant)
		r.calls[p.CallID] = peers
		r.logger.WithField("call", p.CallID).Debugln("call opened")
	}
	if _, dup := peers[p.ID]; dup {
		return ErrDuplicateParticipant
	}
	peers[p.ID] = p
	r.total++
	r.metrics.setSizes(r.total, len(r.calls))
	return nil
}

// Unregister removes p and closes its outbound queue. It reports whether p
// was registered.
func (r *Registry) Unregister(p *Participant) bool {
	r.Lock()
	defer r.Unlock()

	peers, exists := r.calls[p.CallID]
	if !exists || peers[p.ID] != p {
		return false
	}
	delete(peers, p.ID)
	p.closed = true
	close(p.send)
	r.total--

	// Clean up call if empty
	if len(peers) == 0 {
		delete(r.calls, p.CallID)
		r.logger.WithField("call", p.CallID).Debugln("call closed")
	}
	r.metrics.setSizes(r.total, len(r.calls))
	return true
}

// BroadcastExcept queues data for every participant of callID other than
// senderID and returns the number of recipients it was queued for. A
// recipient whose queue is full is skipped.
func (r *Registry) BroadcastExcept(callID, senderID string, data []byte) int {
	r.RLock()
	defer r.RUnlock()

	delivered := 0
	for peerID, p := range r.calls[callID] {
		if peerID == senderID {
			continue
		}
		if r.enqueue(p, data) {
			delivered++
		}
	}
	return delivered
}

// SendTo queues data for a single participant of callID.
func (r *Registry) SendTo(callID, targetID string, data []byte) bool {
	r.RLock()
	defer r.RUnlock()

	p, exists := r.calls[callID][targetID]
	if !exists {
		r.metrics.incDropped(dropReasonNoTarget)
		r.logger.WithFields(logrus.Fields{
			"call":   callID,
			"target": targetID,
		}).Debugln("target participant not found")
		return false
	}
	return r.enqueue(p, data)
}

// Count returns the number of participants registered for callID.
func (r *Registry) Count(callID string) int {
	r.RLock()
	defer r.RUnlock()
	return len(r.calls[callID])
}

// enqueue must be called with at least the read lock held, which keeps
// Unregister from closing the queue underneath.
func (r *Registry) enqueue(p *Participant, data []byte) bool {
	select {
	case p.send <- data:
		r.metrics.incForwarded()
		return true
	default:
		r.metrics.incDropped(dropReasonQueueFull)
		r.logger.WithField("peer", p.ID).Warnln("failed to send message to peer, buffer full")
		return false
	}
}
