package resolver

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/wire"
)

// Datagrams larger than this are not expected from plain-UDP nameservers.
const maxDatagramSize = 2048

// UDPExchanger sends one query per connection over UDP and waits for a
// single response. Every exchange carries an explicit deadline; an upstream
// that never answers costs at most Timeout.
type UDPExchanger struct {
	// Port is the destination port, normally 53.
	Port int
	// Timeout bounds the full round trip.
	Timeout time.Duration
}

// Exchange implements Exchanger.
func (u *UDPExchanger) Exchange(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
	dialer := net.Dialer{Timeout: u.Timeout}
	conn, err := dialer.DialContext(ctx, "udp", net.JoinHostPort(addr, strconv.Itoa(u.Port)))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(u.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	if _, err := conn.Write(query.Encode()); err != nil {
		return nil, fmt.Errorf("sending query to %s: %w", addr, err)
	}

	buf := make([]byte, maxDatagramSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("receiving response from %s: %w", addr, err)
	}

	response, err := wire.DecodeMessage(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", addr, err)
	}
	if response.ID != query.ID {
		return nil, fmt.Errorf("response ID %#04x does not match query ID %#04x", response.ID, query.ID)
	}
	return response, nil
}
