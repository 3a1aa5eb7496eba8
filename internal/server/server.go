// Package server runs the UDP query loop: decode an inbound datagram,
// resolve each question against the shared cache, encode and reply.
package server

import (
	"context"
	"errors"
	"net"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/resolver"
	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/wire"
)

const maxDatagramSize = 2048

// Server serves DNS queries from a packet connection. Queries are handled
// one at a time; a query is fully resolved, including any upstream round
// trips, before the next datagram is read.
type Server struct {
	conn     net.PacketConn
	resolver *resolver.Resolver
	log      logr.Logger
	metrics  *Metrics
}

// New wires a server to its connection and resolver. A nil metrics set
// disables counting.
func New(conn net.PacketConn, res *resolver.Resolver, log logr.Logger, metrics *Metrics) *Server {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Server{conn: conn, resolver: res, log: log, metrics: metrics}
}

// Serve reads and answers queries until the context is cancelled. It owns
// the connection and closes it on the way out.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	s.log.Info("serving DNS queries", "addr", s.conn.LocalAddr().String())

	buf := make([]byte, maxDatagramSize)
	for {
		n, client, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("server shutting down")
				return ctx.Err()
			}
			s.log.Error(err, "reading datagram")
			continue
		}
		s.handle(ctx, client, buf[:n])
	}
}

// handle answers a single datagram. Nothing here is fatal to the serve loop:
// malformed input gets a FORMERR reply when the transaction ID is
// salvageable and is otherwise dropped.
func (s *Server) handle(ctx context.Context, client net.Addr, data []byte) {
	query, err := wire.DecodeMessage(data)
	if err != nil {
		s.log.Error(err, "bad query datagram", "client", client.String())
		s.metrics.count("formerr")
		s.replyFormatError(client, data)
		return
	}

	response := query
	response.Response = true
	response.RecursionAvailable = true
	response.RCode = wire.RCodeNoError

	for _, question := range query.Questions {
		s.log.Info("answering query",
			"client", client.String(),
			"type", question.Type.String(),
			"name", question.Name,
			"recursive", query.RecursionDesired)

		answers, additional, err := s.resolver.Resolve(ctx, question.Type, question.Name, query.RecursionDesired)
		if err != nil {
			s.log.Error(err, "resolution failed", "name", question.Name)
			// Partial answers are never mixed with an error code.
			response.Answers = nil
			response.Additional = nil
			response.RCode = wire.RCodeServerFailure
			break
		}
		response.Answers = append(response.Answers, answers...)
		response.Additional = append(response.Additional, additional...)
	}

	if response.RCode == wire.RCodeNoError {
		s.metrics.count("ok")
	} else {
		s.metrics.count("servfail")
	}

	if _, err := s.conn.WriteTo(response.Encode(), client); err != nil {
		s.log.Error(err, "sending response", "client", client.String())
	}
}

// replyFormatError sends a bare FORMERR response reusing the client's
// transaction ID when at least a partial header arrived.
func (s *Server) replyFormatError(client net.Addr, data []byte) {
	if len(data) < 2 {
		return
	}
	response := &wire.Message{
		ID:       uint16(data[0])<<8 | uint16(data[1]),
		Response: true,
		RCode:    wire.RCodeFormatError,
	}
	if _, err := s.conn.WriteTo(response.Encode(), client); err != nil &&
		!errors.Is(err, net.ErrClosed) {
		s.log.Error(err, "sending FORMERR", "client", client.String())
	}
}
