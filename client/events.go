package client

import "factorio-headless-client/internal/protoerr"

// Event is one of the variants enumerated below, delivered in emission
// order through Session.Events(). Each event reaches only one of the
// channels Events() has returned.
type Event interface{ isEvent() }

type Connecting struct{ Phase string }

type Connected struct{ PlayerID uint16 }

type MapProgress struct {
	Received int
	Total    int
}

type WorldReady struct{}

type TickConfirmed struct {
	Tick     uint32
	Checksum uint32
}

type DesyncSuspected struct {
	Tick     uint32
	Expected uint32
	Got      uint32
}

// Disconnected reports why the session closed. Context carries the
// specific reason behind Reason when one exists (e.g. a HandshakeDenied
// carries the server's DenyReason name: "WrongVersion", "ServerFull",
// "AuthFailed"); it is empty when Reason alone is the whole story.
type Disconnected struct {
	Reason  protoerr.Kind
	Context string
}

type ProtocolErrorEvent struct {
	Kind    protoerr.Kind
	Context string
}

func (Connecting) isEvent()         {}
func (Connected) isEvent()          {}
func (MapProgress) isEvent()        {}
func (WorldReady) isEvent()         {}
func (TickConfirmed) isEvent()      {}
func (DesyncSuspected) isEvent()    {}
func (Disconnected) isEvent()       {}
func (ProtocolErrorEvent) isEvent() {}
