package wire

import "encoding/binary"

// Record is one answer to be serialized into the message it answers.
// Name is a compression pointer, not a literal name: the question the
// record answers stays at a known offset of the same buffer.
type Record struct {
	Name  uint16
	Type  uint16
	Class uint16
	TTL   uint32
	Data  []byte // 4 bytes for A, 16 for AAAA
}

// Pointer encodes a compression pointer to a name at the given message
// offset: top two bits 11, low 14 bits the offset (RFC 1035 4.1.4).
// Offsets within a 512-byte message always fit.
func Pointer(offset int) uint16 {
	return 0b1100_0000_0000_0000 | uint16(offset)
}

// AppendAnswer serializes r after the occupied bytes and advances the
// write cursor. The fixed transport buffer never grows; an answer that
// does not fit is refused.
func (m *Message) AppendAnswer(r Record) error {
	need := 2 + 2 + 2 + 4 + 2 + len(r.Data)
	if m.n+need > len(m.buf) {
		return ErrNoSpace
	}

	b := m.buf[m.n:]
	binary.BigEndian.PutUint16(b[0:2], r.Name)
	binary.BigEndian.PutUint16(b[2:4], r.Type)
	binary.BigEndian.PutUint16(b[4:6], r.Class)
	binary.BigEndian.PutUint32(b[6:10], r.TTL)
	binary.BigEndian.PutUint16(b[10:12], uint16(len(r.Data)))
	copy(b[12:], r.Data)
	m.n += need

	return nil
}
