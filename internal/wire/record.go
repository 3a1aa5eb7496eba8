package wire

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"
)

// Record is one DNS resource record. Value is type-dependent: a dotted-quad
// string for A, colon-separated hex groups for AAAA, a domain name for
// CNAME/NS, and raw text otherwise. A negative TTL means the record never
// expires (used for root hints).
type Record struct {
	Name      string
	Type      RRType
	Value     string
	TTL       int
	FetchedAt time.Time
}

// NewRecord builds a record stamped with the current time.
func NewRecord(rrtype RRType, name, value string, ttl int) *Record {
	return &Record{
		Name:      strings.TrimSuffix(strings.TrimSpace(name), "."),
		Type:      rrtype,
		Value:     value,
		TTL:       ttl,
		FetchedAt: time.Now(),
	}
}

// Expired reports whether the record's TTL has elapsed at the given time.
func (r *Record) Expired(now time.Time) bool {
	if r.TTL < 0 {
		return false
	}
	return now.After(r.FetchedAt.Add(time.Duration(r.TTL) * time.Second))
}

func (r *Record) String() string {
	return fmt.Sprintf("%s %s: %s", r.Type, r.Name, r.Value)
}

// maxEncodedTTL is the largest TTL the wire format carries (RFC 2181 §8).
// Never-expiring records are clamped to it on encode.
const maxEncodedTTL = 1<<31 - 1

func (r *Record) encodedTTL() uint32 {
	if r.TTL < 0 || r.TTL > maxEncodedTTL {
		return maxEncodedTTL
	}
	return uint32(r.TTL)
}

// appendName appends a domain name as length-prefixed labels with a zero
// terminator. Encoded names are never compressed. Keeping names within the
// 255-byte wire limit is the caller's responsibility.
func appendName(buf []byte, name string) []byte {
	name = strings.TrimSuffix(name, ".")
	if name != "" {
		for _, label := range strings.Split(name, ".") {
			buf = append(buf, byte(len(label)))
			buf = append(buf, label...)
		}
	}
	return append(buf, 0)
}

// maxPointerHops bounds compression-pointer indirection so a malicious
// pointer loop cannot hang the decoder.
const maxPointerHops = 8

// decodeName reads a domain name starting at off, following compression
// pointers through the full message. It returns the name and the offset just
// past the name as it appears at off (a pointer consumes two bytes).
func decodeName(msg []byte, off int) (string, int, error) {
	var labels []string
	hops := 0
	next := -1 // offset to resume at after the first pointer

	for {
		if off >= len(msg) {
			return "", 0, fmt.Errorf("%w: name runs past end of message", ErrFormat)
		}
		length := int(msg[off])

		switch {
		case length == 0:
			off++
			if next < 0 {
				next = off
			}
			return strings.Join(labels, "."), next, nil

		case length&0xC0 == 0xC0:
			if off+2 > len(msg) {
				return "", 0, fmt.Errorf("%w: truncated compression pointer", ErrFormat)
			}
			if hops++; hops > maxPointerHops {
				return "", 0, fmt.Errorf("%w: compression pointer loop", ErrFormat)
			}
			if next < 0 {
				next = off + 2
			}
			off = int(binary.BigEndian.Uint16(msg[off:off+2]) & 0x3FFF)

		case length&0xC0 != 0:
			return "", 0, fmt.Errorf("%w: reserved label length bits set", ErrFormat)

		default:
			off++
			if off+length > len(msg) {
				return "", 0, fmt.Errorf("%w: label runs past end of message", ErrFormat)
			}
			labels = append(labels, string(msg[off:off+length]))
			off += length
		}
	}
}

// appendRData appends the type-specific RDATA (with its RDLENGTH prefix).
// Values that fail to parse for their type fall back to raw text, so encoding
// a structurally well-formed record cannot fail.
func appendRData(buf []byte, r *Record) []byte {
	var data []byte
	switch r.Type {
	case TypeA:
		if ip := net.ParseIP(r.Value); ip != nil && ip.To4() != nil {
			data = ip.To4()
		}
	case TypeAAAA:
		if ip := net.ParseIP(r.Value); ip != nil && ip.To4() == nil {
			data = ip.To16()
		}
	case TypeCNAME, TypeNS:
		data = appendName(nil, r.Value)
	}
	if data == nil {
		data = []byte(r.Value)
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(data)))
	return append(buf, data...)
}

// decodeRData interprets length bytes of RDATA at off within msg. The full
// message is needed because CNAME/NS targets may be compressed.
func decodeRData(msg []byte, off, length int, rrtype RRType) (string, error) {
	if off+length > len(msg) {
		return "", fmt.Errorf("%w: RDATA runs past end of message", ErrFormat)
	}
	data := msg[off : off+length]

	switch rrtype {
	case TypeA:
		if length != 4 {
			return "", fmt.Errorf("%w: A record with %d-byte RDATA", ErrFormat, length)
		}
		return net.IP(data).String(), nil

	case TypeAAAA:
		if length != 16 {
			return "", fmt.Errorf("%w: AAAA record with %d-byte RDATA", ErrFormat, length)
		}
		groups := make([]string, 8)
		for i := range groups {
			groups[i] = fmt.Sprintf("%04x", binary.BigEndian.Uint16(data[i*2:]))
		}
		return strings.Join(groups, ":"), nil

	case TypeCNAME, TypeNS:
		name, _, err := decodeName(msg, off)
		return name, err

	default:
		return string(data), nil
	}
}
