package relay

import (
	"errors"
	"fmt"
	"net"

	"github.com/miekg/dns"

	"github.com/treemana/gorelay/log"
	"github.com/treemana/gorelay/wire"
)

// reply reads upstream responses and relays each one to whichever
// client is waiting on its transaction id. Only the header is decoded,
// the rest of the datagram passes through untouched.
func (r *Relay) reply() error {
	buf := make([]byte, wire.MaxMessageSize)
	for {
		n, from, err := r.remote.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Sugar.Info("reply loop: socket closed")
				return nil
			}
			return fmt.Errorf("upstream read: %w", err)
		}

		msg, err := wire.New(buf, n)
		if err != nil {
			log.Sugar.Warnf("upstream %s: %v", from, err)
			continue
		}

		entry, ok := r.pending.Remove(msg.ID())
		if !ok {
			// unsolicited, duplicate, or the entry already expired
			log.Sugar.Debugf("upstream reply id=%d unmatched, dropped", msg.ID())
			continue
		}

		msg.SetID(entry.ID)
		log.Sugar.Infof("id=%d %s answers=%d relayed to %s",
			entry.ID, dns.RcodeToString[int(msg.Rcode())], msg.ANCount(), entry.Addr)
		if _, err = r.local.WriteToUDP(msg.Bytes(), entry.Addr); err != nil {
			return fmt.Errorf("client write: %w", err)
		}
	}
}
