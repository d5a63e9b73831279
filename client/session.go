// Package client is the public API: Connect a session, Submit input
// actions, consume Events, read the current Snapshot, and Disconnect.
// Internally it runs the single cooperative I/O task spec §5 describes,
// generalized from the teacher's Server.listen()/updateLoop()/
// sessionCleanupLoop() goroutine trio into one select loop, since a
// client holds exactly one connection and has no per-session fan-out to
// do.
package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"factorio-headless-client/internal/config"
	"factorio-headless-client/internal/framing"
	"factorio-headless-client/internal/handshake"
	"factorio-headless-client/internal/heartbeat"
	"factorio-headless-client/internal/logx"
	"factorio-headless-client/internal/protoerr"
	"factorio-headless-client/internal/reliability"
	"factorio-headless-client/internal/savedata"
	"factorio-headless-client/internal/transfer"

	"github.com/google/uuid"
)

const maxDatagram = 1472

// messageIDMask is the 15-bit message-ID space; bit 15 is reserved for
// the confirmation-present flag (spec §4.2, §8 wraparound boundary).
const messageIDMask uint16 = 0x7FFF

// checksumCacheWindow bounds how many confirmed-but-unmatched ticks the
// checksum cache retains, so a collaborator that never calls
// ReportChecksum for some tick can't grow the cache without bound.
const checksumCacheWindow = 256

func pruneChecksumCache(cache map[uint32]uint32, latest uint32) {
	if latest < checksumCacheWindow {
		return
	}
	floor := latest - checksumCacheWindow
	for tick := range cache {
		if tick < floor {
			delete(cache, tick)
		}
	}
}

// retryExhaustedKind re-maps the reliability layer's generic
// ReliableRetryExhausted into the phase-specific fatal kind spec §7
// names: HandshakeTimeout while still connecting, TransferTimeout while
// downloading the map. Any other phase or error is returned unchanged.
func retryExhaustedKind(phase handshake.Phase, err error) error {
	pe, ok := err.(*protoerr.Error)
	if !ok || pe.Kind != protoerr.ReliableRetryExhausted {
		return err
	}
	switch phase {
	case handshake.Disconnected, handshake.AwaitingReply, handshake.AwaitingAcceptDeny:
		return protoerr.New(protoerr.HandshakeTimeout, pe.Context)
	case handshake.MapDownload:
		return protoerr.New(protoerr.TransferTimeout, pe.Context)
	default:
		return err
	}
}

// Credentials is re-exported from internal/handshake so callers never
// import an internal package.
type Credentials = handshake.Credentials

// InputAction is re-exported from internal/heartbeat.
type InputAction = heartbeat.InputAction

const (
	ActionStartWalking       = heartbeat.ActionStartWalking
	ActionStopWalking        = heartbeat.ActionStopWalking
	ActionBeginMining        = heartbeat.ActionBeginMining
	ActionStopMining         = heartbeat.ActionStopMining
	ActionCraft              = heartbeat.ActionCraft
	ActionChangeShootingState = heartbeat.ActionChangeShootingState
)

// Session is one connection to a remote Factorio multiplayer host.
type Session struct {
	id     string
	log    *logx.Logger
	conn   *net.UDPConn
	opts   config.Options
	cancel context.CancelFunc
	done   chan struct{}

	inbound   chan []byte
	submit    chan heartbeat.InputAction
	checksums chan checksumReport
	events    chan Event
	snapshot  chan chan WorldSnapshot
}

// checksumReport is one externally computed checksum submitted for
// comparison against the server-confirmed checksum for the same tick
// (spec §4.5, §9: the core never computes checksums itself).
type checksumReport struct {
	Tick     uint32
	Expected uint32
}

// Connect dials remote, runs the handshake to completion as part of the
// returned session's I/O task, and returns once the UDP socket is bound
// (not once the handshake finishes — watch Events() for Connected).
func Connect(ctx context.Context, remote string, creds Credentials, options ...Option) (*Session, error) {
	opts := config.Defaults()
	for _, opt := range options {
		opt(&opts)
	}

	addr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.ShortRead, "resolve", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.ShortRead, "dial", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	sid := uuid.NewString()

	s := &Session{
		id:        sid,
		log:       logx.Named("client").With(logx.Fields{"session": sid}),
		conn:      conn,
		opts:      opts,
		cancel:    cancel,
		done:      make(chan struct{}),
		inbound:   make(chan []byte, 64),
		submit:    make(chan heartbeat.InputAction, 256),
		checksums: make(chan checksumReport, 64),
		events:    make(chan Event, 64),
		snapshot:  make(chan chan WorldSnapshot),
	}

	go s.readLoop(runCtx)
	go s.run(runCtx, creds)

	return s, nil
}

// Submit enqueues an input action for the next outbound heartbeat.
// Non-blocking: fails QueueFull if the outbound queue is saturated, or
// SessionClosed if the session has already ended (spec §6).
func (s *Session) Submit(action InputAction) error {
	select {
	case <-s.done:
		return protoerr.New(protoerr.SessionClosed, "submit")
	default:
	}
	select {
	case s.submit <- action:
		return nil
	default:
		return protoerr.New(protoerr.QueueFull, "submit")
	}
}

// ReportChecksum lets an external simulation collaborator submit a
// checksum it independently computed for tick, so the core can compare
// it against the server-confirmed checksum for that tick and raise
// DesyncSuspected on mismatch (spec §4.5, §9: the core never computes
// checksums itself). Non-blocking, with Submit's failure shape.
func (s *Session) ReportChecksum(tick uint32, expected uint32) error {
	select {
	case <-s.done:
		return protoerr.New(protoerr.SessionClosed, "reportChecksum")
	default:
	}
	select {
	case s.checksums <- checksumReport{Tick: tick, Expected: expected}:
		return nil
	default:
		return protoerr.New(protoerr.QueueFull, "reportChecksum")
	}
}

// Events returns the session's event stream. Each call allocates its own
// forwarding channel, but every such channel draws from the one shared
// event stream: each event is delivered to only one of them, so with more
// than one caller no caller sees every event. Callers that don't read
// promptly may see events dropped rather than block the I/O task.
func (s *Session) Events() <-chan Event {
	out := make(chan Event, 64)
	go func() {
		for ev := range s.events {
			select {
			case out <- ev:
			default:
			}
		}
		close(out)
	}()
	return out
}

// Snapshot returns a copy of the current world snapshot, empty until the
// map transfer completes (spec §6).
func (s *Session) Snapshot() WorldSnapshot {
	reply := make(chan WorldSnapshot, 1)
	select {
	case s.snapshot <- reply:
		return <-reply
	case <-s.done:
		return emptySnapshot()
	}
}

// Disconnect cooperatively shuts the session down: flushes pending
// confirmations, sends a best-effort disconnect, and releases the socket
// (spec §5).
func (s *Session) Disconnect() {
	s.cancel()
	<-s.done
}

func (s *Session) readLoop(ctx context.Context) {
	buf := make([]byte, maxDatagram)
	for {
		s.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := s.conn.Read(buf)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			continue
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case s.inbound <- cp:
		case <-ctx.Done():
			return
		}
	}
}

// run is the single cooperative I/O task: one select over inbound
// datagrams, the heartbeat ticker, and the outbound submit queue (spec
// §5), generalized from the teacher's three-goroutine server loop into
// one loop because a client drives exactly one connection.
func (s *Session) run(ctx context.Context, creds Credentials) {
	defer close(s.done)
	defer close(s.events)
	defer s.conn.Close()

	fsm := handshake.New(creds)
	out := reliability.NewOutbound(time.Duration(s.opts.RetransmitMs)*time.Millisecond, s.opts.RetryCap)
	in := reliability.NewInbound()
	reasm := reliability.NewReassembler(time.Duration(s.opts.FragmentTTLMs) * time.Millisecond)
	xfer := transfer.New()
	gate := &heartbeat.SequenceGate{}

	var nextMessageID uint16
	var seq uint16
	var pendingActions []heartbeat.InputAction
	snap := emptySnapshot()

	confirmedChecksums := make(map[uint32]uint32)
	pendingExpected := make(map[uint32]uint32)

	retransmitTick := time.NewTicker(time.Duration(s.opts.RetransmitMs) * time.Millisecond)
	defer retransmitTick.Stop()
	heartbeatTick := time.NewTicker(heartbeatInterval(s.opts))
	defer heartbeatTick.Stop()
	reapTick := time.NewTicker(time.Duration(s.opts.FragmentTTLMs) * time.Millisecond)
	defer reapTick.Stop()
	ackWindowTick := time.NewTicker(time.Duration(s.opts.AckWindowMs) * time.Millisecond)
	defer ackWindowTick.Stop()

	emit := func(ev Event) {
		select {
		case s.events <- ev:
		default:
		}
	}

	compareChecksum := func(tick, expected, got uint32) {
		if expected != got {
			emit(DesyncSuspected{Tick: tick, Expected: expected, Got: got})
		}
	}

	// sendReliable stamps packet with the next message ID and, since any
	// outbound packet is a chance to pay down confirmations owed to the
	// peer (spec §4.4: "flushed piggy-backed on the next outbound
	// packet"), piggy-backs whatever is currently owed regardless of
	// connection phase — handshake and map-transfer sends are not exempt.
	sendReliable := func(packet []byte) {
		id := nextMessageID
		nextMessageID = (nextMessageID + 1) & messageIDMask
		h, err := framing.Parse(packet)
		if err == nil {
			h.MessageID = id
			h.Reliable = true
			if in.Owed() {
				h.Confirmations = in.Flush()
			}
			packet = framing.Emit(h)
		}
		out.Track(id, packet, time.Now())
		s.conn.Write(packet)
	}

	fail := func(err error) {
		kind, context, _ := protoerr.Detail(err)
		s.log.Error("session closed", err, nil)
		emit(Disconnected{Reason: kind, Context: context})
		fsm.Abort()
	}

	// dispatchInbound decodes and routes one inbound datagram. It recovers
	// a panic anywhere in decoding or dispatch the way the teacher's
	// handleConnection does, converting it into a fatal ProtocolError
	// instead of taking the whole session down. The returned bool reports
	// whether run() must exit.
	dispatchInbound := func(raw []byte) (terminate bool) {
		defer func() {
			if r := recover(); r != nil {
				fail(protoerr.Wrap(protoerr.UnknownMessageType, "dispatch panic", fmt.Errorf("%v", r)))
				terminate = true
			}
		}()

		hdr, err := framing.Parse(raw)
		if err != nil {
			s.log.Warn("drop malformed packet", logx.Fields{"error": err.Error()})
			return false
		}
		if len(hdr.Confirmations) > 0 {
			out.Ack(hdr.Confirmations)
		}
		if hdr.Reliable {
			if duplicate := in.Observe(hdr.MessageID); duplicate {
				return false
			}
		}

		payload := hdr.Payload
		if hdr.Fragmented {
			complete, done, _, ferr := reasm.Add(hdr.FragmentID, hdr.Payload, time.Now())
			if ferr != nil {
				s.log.Warn("drop bad fragment", logx.Fields{"error": ferr.Error()})
				return false
			}
			if !done {
				return false
			}
			payload = complete
		}

		switch hdr.Type {
		case framing.MsgConnectionRequestReply:
			reply, err := fsm.HandleConnectionRequestReply(payload)
			if err != nil {
				fail(err)
				return true
			}
			emit(Connecting{Phase: fsm.Phase().String()})
			sendReliable(reply)

		case framing.MsgConnectionAcceptOrDeny:
			if err := fsm.HandleAcceptOrDeny(payload); err != nil {
				fail(err)
				return true
			}
			emit(Connected{PlayerID: fsm.PlayerID()})
			if total, ok := fsm.AnnouncedTotalBlocks(); ok {
				xfer.AnnounceTotal(total)
			}
			for _, req := range xfer.NextRequests(8) {
				sendReliable(req)
			}

		case framing.MsgTransferBlock:
			complete, err := xfer.HandleBlock(payload)
			if err != nil {
				s.log.Warn("drop bad block", logx.Fields{"error": err.Error()})
				return false
			}
			emit(MapProgress{Received: xfer.Received(), Total: int(xfer.Total())})
			if !complete {
				for _, req := range xfer.NextRequests(4) {
					sendReliable(req)
				}
				return false
			}
			buf, err := xfer.Buffer()
			if err != nil {
				fail(protoerr.Wrap(protoerr.TransferCorrupt, "buffer", err))
				return true
			}
			archive, err := transfer.DecodeArchive(buf)
			if err != nil {
				fail(err)
				return true
			}
			result, entryErrs := savedata.Decode(archive, s.opts.MaxSnapshotEntities, s.opts.Decoder)
			for _, ee := range entryErrs {
				emit(ProtocolErrorEvent{Kind: protoerr.DecoderRejected, Context: ee.Entry})
			}
			snap.Prototypes = result.Prototypes
			snap.Entities = result.Entities
			snap.ResourceCounts = result.ResourceCounts
			if err := fsm.EnterInGame(); err != nil {
				fail(err)
				return true
			}
			emit(WorldReady{})

		case framing.MsgHeartbeat:
			if fsm.Phase() != handshake.InGame {
				return false
			}
			sb, err := heartbeat.Decode(payload)
			if err != nil {
				s.log.Warn("drop bad heartbeat", logx.Fields{"error": err.Error()})
				return false
			}
			if !gate.Accept(sb.Sequence) {
				return false
			}
			if sb.HasPlayerState {
				snap.Player = PlayerState{PlayerID: fsm.PlayerID(), Raw: sb.PlayerState}
			}
			for _, c := range sb.Confirmations {
				emit(TickConfirmed{Tick: c.Tick, Checksum: c.Checksum})
				if expected, ok := pendingExpected[c.Tick]; ok {
					delete(pendingExpected, c.Tick)
					compareChecksum(c.Tick, expected, c.Checksum)
				} else {
					confirmedChecksums[c.Tick] = c.Checksum
					pruneChecksumCache(confirmedChecksums, c.Tick)
				}
			}

		default:
			s.log.Warn("unhandled message type", logx.Fields{"type": hdr.Type})
		}
		return false
	}

	begin, err := fsm.Begin()
	if err != nil {
		fail(err)
		return
	}
	emit(Connecting{Phase: fsm.Phase().String()})
	sendReliable(begin)

	for {
		select {
		case <-ctx.Done():
			s.conn.Write(framing.Emit(&framing.Header{Type: framing.MsgDisconnect, Confirmations: in.Flush()}))
			return

		case raw := <-s.inbound:
			if dispatchInbound(raw) {
				return
			}

		case action := <-s.submit:
			pendingActions = append(pendingActions, action)

		case report := <-s.checksums:
			if got, ok := confirmedChecksums[report.Tick]; ok {
				delete(confirmedChecksums, report.Tick)
				compareChecksum(report.Tick, report.Expected, got)
			} else {
				pendingExpected[report.Tick] = report.Expected
			}

		case <-heartbeatTick.C:
			if fsm.Phase() != handshake.InGame {
				continue
			}
			hb := heartbeat.ClientHeartbeat{
				Sequence: seq,
				Actions:  pendingActions,
			}
			seq++
			pendingActions = nil
			packet := heartbeat.Encode(hb)
			if confirmations := in.Flush(); len(confirmations) > 0 {
				h, err := framing.Parse(packet)
				if err == nil {
					h.Confirmations = confirmations
					packet = framing.Emit(h)
				}
			}
			s.conn.Write(packet)

		case <-retransmitTick.C:
			resend, err := out.DueForRetransmit(time.Now())
			if err != nil {
				fail(retryExhaustedKind(fsm.Phase(), err))
				return
			}
			for _, p := range resend {
				s.conn.Write(p)
			}

		case <-reapTick.C:
			reasm.ReapExpired(time.Now())

		case <-ackWindowTick.C:
			// Nothing else has carried the owed confirmations within the
			// ack window (spec §4.4: "if no packet leaves within the ack
			// window, an empty carrier packet is emitted"), in any phase.
			if !in.Owed() {
				continue
			}
			carrier := framing.Emit(&framing.Header{Type: framing.MsgHeartbeat, Confirmations: in.Flush()})
			s.conn.Write(carrier)

		case reply := <-s.snapshot:
			reply <- snap
		}
	}
}
