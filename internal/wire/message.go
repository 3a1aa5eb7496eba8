package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrFormat reports malformed wire input that the decoder cannot proceed
// past. It maps to a FORMERR reply at the server boundary.
var ErrFormat = errors.New("malformed DNS message")

// Header flag bit positions (RFC 1035 §4.1.1).
const (
	flagQR = 1 << 15
	flagRD = 1 << 8
	flagRA = 1 << 7
)

const headerLen = 12

// Message is one DNS query or response. Section counts are always derived
// from the slice lengths, never stored separately. Question records carry
// only a name and type.
type Message struct {
	ID                 uint16
	Response           bool
	RCode              RCode
	RecursionDesired   bool
	RecursionAvailable bool
	Questions          []*Record
	Answers            []*Record
	Authority          []*Record
	Additional         []*Record
}

// NewQuery builds a single-question query with a random transaction ID.
func NewQuery(rrtype RRType, name string, recursionDesired bool) *Message {
	return &Message{
		ID:               uint16(rand.Intn(1 << 16)),
		RecursionDesired: recursionDesired,
		Questions:        []*Record{{Name: name, Type: rrtype}},
	}
}

// DecodeMessage parses a wire-format DNS message. The whole buffer is kept
// as context so names compressed with pointers into earlier sections can be
// expanded. Resource records are stamped with the current time for cache
// expiry accounting.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: %d-byte message shorter than header", ErrFormat, len(data))
	}

	m := &Message{ID: binary.BigEndian.Uint16(data[0:2])}
	flags := binary.BigEndian.Uint16(data[2:4])
	m.Response = flags&flagQR != 0
	m.RecursionDesired = flags&flagRD != 0
	m.RecursionAvailable = flags&flagRA != 0
	if m.Response {
		m.RCode = RCode(flags & 0xF)
	}

	qdCount := binary.BigEndian.Uint16(data[4:6])
	counts := []uint16{
		binary.BigEndian.Uint16(data[6:8]),
		binary.BigEndian.Uint16(data[8:10]),
		binary.BigEndian.Uint16(data[10:12]),
	}

	off := headerLen
	now := time.Now()
	var err error

	for n := uint16(0); n < qdCount; n++ {
		var q *Record
		q, off, err = decodeQuestion(data, off)
		if err != nil {
			return nil, err
		}
		m.Questions = append(m.Questions, q)
	}

	sections := []*[]*Record{&m.Answers, &m.Authority, &m.Additional}
	for i, section := range sections {
		for n := uint16(0); n < counts[i]; n++ {
			var r *Record
			r, off, err = decodeResource(data, off, now)
			if err != nil {
				return nil, err
			}
			*section = append(*section, r)
		}
	}

	return m, nil
}

// decodeQuestion reads one question entry (QNAME, QTYPE, QCLASS). The class
// is read and discarded; IN is assumed throughout.
func decodeQuestion(msg []byte, off int) (*Record, int, error) {
	name, off, err := decodeName(msg, off)
	if err != nil {
		return nil, 0, err
	}
	if off+4 > len(msg) {
		return nil, 0, fmt.Errorf("%w: truncated question", ErrFormat)
	}
	rrtype := RRType(binary.BigEndian.Uint16(msg[off : off+2]))
	return &Record{Name: name, Type: rrtype}, off + 4, nil
}

// decodeResource reads one resource record from the answer, authority or
// additional sections.
func decodeResource(msg []byte, off int, now time.Time) (*Record, int, error) {
	name, off, err := decodeName(msg, off)
	if err != nil {
		return nil, 0, err
	}
	// TYPE, CLASS, TTL, RDLENGTH
	if off+10 > len(msg) {
		return nil, 0, fmt.Errorf("%w: truncated resource record", ErrFormat)
	}
	rrtype := RRType(binary.BigEndian.Uint16(msg[off : off+2]))
	ttl := binary.BigEndian.Uint32(msg[off+4 : off+8])
	rdLength := int(binary.BigEndian.Uint16(msg[off+8 : off+10]))
	off += 10

	value, err := decodeRData(msg, off, rdLength, rrtype)
	if err != nil {
		return nil, 0, err
	}

	r := &Record{
		Name:      name,
		Type:      rrtype,
		Value:     value,
		TTL:       int(ttl),
		FetchedAt: now,
	}
	return r, off + rdLength, nil
}

// Encode renders the message in wire format. Produced names are never
// compressed; messages this resolver sends are small enough not to need it.
// Encoding cannot fail for well-formed records.
func (m *Message) Encode() []byte {
	buf := make([]byte, 0, 512)
	buf = binary.BigEndian.AppendUint16(buf, m.ID)

	var flags uint16
	if m.Response {
		flags |= flagQR | uint16(m.RCode)
	}
	if m.RecursionDesired {
		flags |= flagRD
	}
	if m.RecursionAvailable {
		flags |= flagRA
	}
	buf = binary.BigEndian.AppendUint16(buf, flags)

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.Questions)))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.Answers)))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.Authority)))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.Additional)))

	for _, q := range m.Questions {
		buf = appendName(buf, q.Name)
		buf = binary.BigEndian.AppendUint16(buf, uint16(q.Type))
		buf = binary.BigEndian.AppendUint16(buf, 1) // class IN
	}
	for _, section := range [][]*Record{m.Answers, m.Authority, m.Additional} {
		for _, r := range section {
			buf = appendName(buf, r.Name)
			buf = binary.BigEndian.AppendUint16(buf, uint16(r.Type))
			buf = binary.BigEndian.AppendUint16(buf, 1) // class IN
			buf = binary.BigEndian.AppendUint32(buf, r.encodedTTL())
			buf = appendRData(buf, r)
		}
	}
	return buf
}
