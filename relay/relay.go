package relay

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/treemana/gorelay/hosts"
	"github.com/treemana/gorelay/log"
	"github.com/treemana/gorelay/pending"
)

// answerTTL is stamped on every answer synthesized from the hosts
// table, in seconds.
const answerTTL = 600

type Config struct {
	Local    string // client facing listen address
	Remote   string // local address upstream queries are sent from
	Upstream string // upstream resolver address
}

// Relay moves DNS datagrams between two sockets. The forward loop owns
// the client facing socket's reads, the reply loop owns the upstream
// facing socket's reads, and the pending table is the only state they
// share.
type Relay struct {
	local    *net.UDPConn
	remote   *net.UDPConn
	upstream *net.UDPAddr

	hosts   *hosts.Table
	pending *pending.Table
}

func New(cfg Config, table *hosts.Table, queries *pending.Table) (*Relay, error) {
	upstream, err := net.ResolveUDPAddr("udp", cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("upstream address: %w", err)
	}

	r := &Relay{
		upstream: upstream,
		hosts:    table,
		pending:  queries,
	}

	if r.local, err = listen(cfg.Local); err != nil {
		return nil, err
	}
	if r.remote, err = listen(cfg.Remote); err != nil {
		_ = r.local.Close()
		return nil, err
	}

	return r, nil
}

func listen(address string) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		log.Sugar.Errorf("udp [%s] listen error=[%+v]", address, err)
		return nil, err
	}
	return conn, nil
}

// LocalAddr returns the bound client facing address.
func (r *Relay) LocalAddr() *net.UDPAddr {
	return r.local.LocalAddr().(*net.UDPAddr)
}

// Run drives both loops until ctx ends or a socket fails. A failure in
// either loop tears the other one down as well, so the process never
// keeps running half-deaf.
func (r *Relay) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(r.forward)
	g.Go(r.reply)
	g.Go(func() error {
		// closing the sockets is what unwinds the blocked reads
		<-ctx.Done()
		_ = r.local.Close()
		_ = r.remote.Close()
		return nil
	})

	return g.Wait()
}
