package wire

import (
	"encoding/binary"
	"errors"
)

const (
	// MaxMessageSize is the UDP payload limit for a plain DNS message,
	// see RFC 1035 section 2.3.4.
	MaxMessageSize = 512

	// HeaderSize is the fixed DNS header length in bytes.
	HeaderSize = 12

	maxLabelLen = 63
)

const (
	TypeA    uint16 = 1
	TypeAAAA uint16 = 28

	ClassINET uint16 = 1
)

const (
	RcodeSuccess   uint8 = 0
	RcodeNameError uint8 = 3
)

var (
	ErrShortMessage = errors.New("message shorter than header")
	ErrLongMessage  = errors.New("message exceeds buffer")
	ErrTruncated    = errors.New("truncated message")
	ErrBadLabel     = errors.New("bad label length")
	ErrNoSpace      = errors.New("no buffer space for answer")
)

// Message is a view over one DNS datagram inside a caller-owned
// fixed-capacity buffer. The buffer is never reallocated; answers are
// appended in place after the bytes already occupied, so the question
// section keeps its original offsets and compression pointers into it
// stay valid.
type Message struct {
	buf []byte
	n   int // occupied bytes: header + question (+ appended answers)
}

// New wraps n received bytes of buf. The remaining capacity of buf is
// available for appending answers.
func New(buf []byte, n int) (*Message, error) {
	if n < HeaderSize {
		return nil, ErrShortMessage
	}
	if n > len(buf) {
		return nil, ErrLongMessage
	}
	return &Message{buf: buf, n: n}, nil
}

// Len returns the number of occupied bytes.
func (m *Message) Len() int {
	return m.n
}

// Bytes returns the occupied prefix of the buffer, ready to send.
func (m *Message) Bytes() []byte {
	return m.buf[:m.n]
}

func (m *Message) ID() uint16 {
	return binary.BigEndian.Uint16(m.buf[0:2])
}

func (m *Message) SetID(id uint16) {
	binary.BigEndian.PutUint16(m.buf[0:2], id)
}

// Response reports the QR bit.
func (m *Message) Response() bool {
	return m.buf[2]&0b1000_0000 != 0
}

// SetResponse sets the QR bit, leaving OPCODE, AA, TC and RD untouched.
func (m *Message) SetResponse() {
	m.buf[2] |= 0b1000_0000
}

func (m *Message) Rcode() uint8 {
	return m.buf[3] & 0b0000_1111
}

// SetRcode writes the low four bits of byte 3, leaving RA and Z untouched.
func (m *Message) SetRcode(rcode uint8) {
	m.buf[3] = (m.buf[3] & 0b1111_0000) | (rcode & 0b0000_1111)
}

func (m *Message) QDCount() uint16 {
	return binary.BigEndian.Uint16(m.buf[4:6])
}

func (m *Message) ANCount() uint16 {
	return binary.BigEndian.Uint16(m.buf[6:8])
}

func (m *Message) SetANCount(n uint16) {
	binary.BigEndian.PutUint16(m.buf[6:8], n)
}

func (m *Message) SetNSCount(n uint16) {
	binary.BigEndian.PutUint16(m.buf[8:10], n)
}

func (m *Message) SetARCount(n uint16) {
	binary.BigEndian.PutUint16(m.buf[10:12], n)
}
