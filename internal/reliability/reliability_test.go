package reliability

import (
	"testing"
	"time"
)

func TestOutboundAckRemovesPending(t *testing.T) {
	o := NewOutbound(50*time.Millisecond, 5)
	o.Track(1, []byte("a"), time.Now())
	o.Track(2, []byte("b"), time.Now())

	if !o.Pending(1) || !o.Pending(2) {
		t.Fatal("expected both IDs pending")
	}
	o.Ack([]uint32{1})
	if o.Pending(1) {
		t.Error("expected ID 1 to be acked")
	}
	if !o.Pending(2) {
		t.Error("expected ID 2 still pending")
	}
}

func TestOutboundRetransmitAfterInterval(t *testing.T) {
	o := NewOutbound(10*time.Millisecond, 5)
	now := time.Now()
	o.Track(1, []byte("payload"), now)

	resend, err := o.DueForRetransmit(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resend) != 0 {
		t.Errorf("expected no retransmit before interval elapses, got %d", len(resend))
	}

	later := now.Add(20 * time.Millisecond)
	resend, err = o.DueForRetransmit(later)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resend) != 1 || string(resend[0]) != "payload" {
		t.Errorf("expected retransmit of original bytes, got %v", resend)
	}
}

func TestOutboundRetryCapExhausted(t *testing.T) {
	o := NewOutbound(1*time.Millisecond, 2)
	now := time.Now()
	o.Track(1, []byte("a"), now)

	var err error
	for i := 0; i < 4; i++ {
		now = now.Add(2 * time.Millisecond)
		_, err = o.DueForRetransmit(now)
		if err != nil {
			break
		}
	}
	if err == nil {
		t.Fatal("expected ReliableRetryExhausted")
	}
}

func TestInboundDedup(t *testing.T) {
	in := NewInbound()
	if dup := in.Observe(5); dup {
		t.Error("first observation should not be a duplicate")
	}
	if dup := in.Observe(5); !dup {
		t.Error("second observation of same ID should be a duplicate")
	}
	owed := in.Flush()
	if len(owed) != 2 {
		t.Errorf("expected both observations to schedule a confirmation, got %d", len(owed))
	}
	if in.Owed() {
		t.Error("expected no confirmations owed after flush")
	}
}

func TestFragmentReassemblySentinelTermination(t *testing.T) {
	r := NewReassembler(time.Second)
	now := time.Now()

	p0 := EncodeFragmentPiece(0, 0, []byte("ab"))
	p1 := EncodeFragmentPiece(1, 0, []byte("cd"))
	term := EncodeFragmentTerminator(2)

	if _, done, _, err := r.Add(0x1234, p0, now); err != nil || done {
		t.Fatalf("piece 0: done=%v err=%v", done, err)
	}
	if _, done, _, err := r.Add(0x1234, p1, now); err != nil || done {
		t.Fatalf("piece 1: done=%v err=%v", done, err)
	}
	payload, done, mode, err := r.Add(0x1234, term, now)
	if err != nil {
		t.Fatalf("terminator: %v", err)
	}
	if !done {
		t.Fatal("expected group to complete on terminator")
	}
	if mode != TerminationSentinel {
		t.Errorf("expected TerminationSentinel, got %v", mode)
	}
	if string(payload) != "abcd" {
		t.Errorf("got %q, want %q", payload, "abcd")
	}
}

func TestFragmentReassemblyDeclaredSizeTermination(t *testing.T) {
	r := NewReassembler(time.Second)
	now := time.Now()

	p0 := EncodeFragmentPiece(0, 2, []byte("ab"))
	payload, done, mode, err := r.Add(0xABCD, p0, now)
	if err != nil {
		t.Fatalf("piece 0: %v", err)
	}
	if done {
		t.Fatal("should not complete after one of two pieces")
	}

	p1 := EncodeFragmentPiece(1, 0, []byte("cd"))
	payload, done, mode, err = r.Add(0xABCD, p1, now)
	if err != nil {
		t.Fatalf("piece 1: %v", err)
	}
	if !done {
		t.Fatal("expected group to complete once declared total reached")
	}
	if mode != TerminationDeclaredSize {
		t.Errorf("expected TerminationDeclaredSize, got %v", mode)
	}
	if string(payload) != "abcd" {
		t.Errorf("got %q, want %q", payload, "abcd")
	}
}

func TestFragmentReassemblyOutOfOrder(t *testing.T) {
	r := NewReassembler(time.Second)
	now := time.Now()

	pieces := [][]byte{
		EncodeFragmentPiece(2, 0, []byte("EF")),
		EncodeFragmentPiece(0, 3, []byte("AB")),
		EncodeFragmentPiece(1, 0, []byte("CD")),
	}

	var payload []byte
	var done bool
	var err error
	for _, p := range pieces {
		payload, done, _, err = r.Add(0x1234, p, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !done {
		t.Fatal("expected completion once all three pieces arrived")
	}
	if string(payload) != "ABCDEF" {
		t.Errorf("got %q, want %q", payload, "ABCDEF")
	}
}

func TestFragmentReassemblyReapExpired(t *testing.T) {
	r := NewReassembler(10 * time.Millisecond)
	now := time.Now()
	r.Add(0x01, EncodeFragmentPiece(0, 5, []byte("x")), now)

	if n := r.ReapExpired(now); n != 0 {
		t.Errorf("expected nothing reaped before TTL, got %d", n)
	}
	if n := r.ReapExpired(now.Add(20 * time.Millisecond)); n != 1 {
		t.Errorf("expected 1 group reaped after TTL, got %d", n)
	}
}
