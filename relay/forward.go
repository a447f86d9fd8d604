package relay

import (
	"errors"
	"fmt"
	"net"

	"github.com/miekg/dns"

	"github.com/treemana/gorelay/log"
	"github.com/treemana/gorelay/wire"
)

// forward reads client queries, answers what the hosts table covers and
// hands the rest to the upstream resolver under a fresh transaction id.
func (r *Relay) forward() error {
	buf := make([]byte, wire.MaxMessageSize)
	for {
		n, client, err := r.local.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Sugar.Info("forward loop: socket closed")
				return nil
			}
			return fmt.Errorf("client read: %w", err)
		}

		if err = r.handleQuery(buf, n, client); err != nil {
			return err
		}
	}
}

// handleQuery serves one datagram. A malformed datagram is dropped, the
// client runs into its own timeout. Only a socket fault is returned.
func (r *Relay) handleQuery(buf []byte, n int, client *net.UDPAddr) error {
	msg, err := wire.New(buf, n)
	if err != nil {
		log.Sugar.Warnf("client %s: %v", client, err)
		return nil
	}

	questions, err := msg.Questions()
	if err != nil {
		log.Sugar.Warnf("client %s id=%d: %v", client, msg.ID(), err)
		return nil
	}

	answers := make([]wire.Record, 0, len(questions))
	for _, q := range questions {
		addr, ok := r.hosts.Lookup(q.Name)
		if !ok {
			continue
		}

		if addr.IsUnspecified() {
			// blocked name refuses the whole query, remaining
			// questions are not looked at
			msg.SetResponse()
			msg.SetRcode(wire.RcodeNameError)
			log.Sugar.Infof("id=%d %s %s blocked", msg.ID(), dns.TypeToString[q.Type], q.Name)
			if _, err = r.local.WriteToUDP(msg.Bytes(), client); err != nil {
				return fmt.Errorf("client write: %w", err)
			}
			return nil
		}

		var data []byte
		switch {
		case q.Type == wire.TypeA && addr.Is4():
			b := addr.As4()
			data = b[:]
		case q.Type == wire.TypeAAAA && addr.Is6():
			b := addr.As16()
			data = b[:]
		default:
			// the table holds the other address family, the
			// upstream may still know a matching record
			continue
		}

		answers = append(answers, wire.Record{
			Name:  wire.Pointer(q.Offset),
			Type:  q.Type,
			Class: q.Class,
			TTL:   answerTTL,
			Data:  data,
		})
	}

	if len(answers) == len(questions) {
		return r.answerLocally(msg, answers, client)
	}
	return r.forwardUpstream(msg, client)
}

func (r *Relay) answerLocally(msg *wire.Message, answers []wire.Record, client *net.UDPAddr) error {
	for _, record := range answers {
		if err := msg.AppendAnswer(record); err != nil {
			log.Sugar.Warnf("client %s id=%d: %v", client, msg.ID(), err)
			return nil
		}
	}

	msg.SetResponse()
	msg.SetANCount(uint16(len(answers)))
	msg.SetNSCount(0)
	msg.SetARCount(0)

	log.Sugar.Infof("id=%d answered %d locally", msg.ID(), len(answers))
	if _, err := r.local.WriteToUDP(msg.Bytes(), client); err != nil {
		return fmt.Errorf("client write: %w", err)
	}
	return nil
}

// forwardUpstream sends the whole original query upstream, even when
// some questions were answerable here. A little duplicated upstream
// work buys not having to split the question section.
func (r *Relay) forwardUpstream(msg *wire.Message, client *net.UDPAddr) error {
	id := msg.ID()
	sid, err := r.pending.Insert(id, client)
	if err != nil {
		log.Sugar.Warnf("id=%d from %s dropped: %v", id, client, err)
		return nil
	}

	msg.SetID(sid)
	log.Sugar.Debugf("id=%d forwarded as %d", id, sid)
	if _, err = r.remote.WriteToUDP(msg.Bytes(), r.upstream); err != nil {
		return fmt.Errorf("upstream write: %w", err)
	}
	return nil
}
