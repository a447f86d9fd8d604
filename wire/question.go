package wire

import (
	"encoding/binary"
	"strings"
)

// Question is one decoded entry of the question section. Offset is the
// position of the name within the message, kept so a synthesized answer
// can point back to it with a compression pointer.
type Question struct {
	Offset int
	Name   string // dot-joined labels, no trailing dot
	Type   uint16
	Class  uint16
}

// Questions decodes QDCOUNT entries starting right after the header.
// Malformed input yields an error instead of a read past the received
// bytes.
func (m *Message) Questions() ([]Question, error) {
	count := int(m.QDCount())
	if count == 0 {
		return nil, nil
	}

	questions := make([]Question, 0, count)
	pos := HeaderSize
	for i := 0; i < count; i++ {
		q, next, err := m.question(pos)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
		pos = next
	}

	return questions, nil
}

func (m *Message) question(pos int) (Question, int, error) {
	q := Question{Offset: pos}

	var name strings.Builder
	for {
		if pos >= m.n {
			return q, 0, ErrTruncated
		}

		length := int(m.buf[pos])
		pos++
		if length == 0 {
			break
		}
		// a length above 63 is either a compression pointer, which is
		// not valid for a name we answer in place, or garbage
		if length > maxLabelLen {
			return q, 0, ErrBadLabel
		}
		if pos+length > m.n {
			return q, 0, ErrTruncated
		}

		if name.Len() > 0 {
			name.WriteByte('.')
		}
		name.Write(m.buf[pos : pos+length])
		pos += length
	}

	if pos+4 > m.n {
		return q, 0, ErrTruncated
	}

	q.Name = name.String()
	q.Type = binary.BigEndian.Uint16(m.buf[pos : pos+2])
	q.Class = binary.BigEndian.Uint16(m.buf[pos+2 : pos+4])

	return q, pos + 4, nil
}
