package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/treemana/gorelay/hosts"
	"github.com/treemana/gorelay/log"
	"github.com/treemana/gorelay/pending"
	"github.com/treemana/gorelay/relay"
)

// Option represents the config file. Fields left empty fall back to the
// environment and then to the built-in defaults, so the relay also runs
// with no file at all.
type Option struct {
	Log struct {
		File    string `json:"file"`
		STDOUT  bool   `json:"stdout"`
		Verbose bool   `json:"verbose"`
	} `json:"log"`

	Local    string `json:"local"`    // client facing listen address
	Remote   string `json:"remote"`   // source address for upstream queries
	Upstream string `json:"upstream"` // upstream resolver address
	Hosts    string `json:"hosts"`    // override table file

	// PendingTTL is how many seconds a forwarded query may stay
	// unanswered before its table entry is evicted.
	PendingTTL uint64 `json:"pending_ttl"`
}

var option Option

func main() {

	file := flag.String("c", "gorelay.json", "config location")
	flag.Parse()

	raw, err := os.ReadFile(*file)
	switch {
	case err == nil:
		if err = json.Unmarshal(raw, &option); err != nil {
			panic(err)
		}
		fmt.Println(string(raw))
	case errors.Is(err, fs.ErrNotExist):
		option.Log.STDOUT = true
	default:
		panic(err)
	}

	applyFallbacks()

	// init log
	if err = initLog(); err != nil {
		return
	}
	defer func() {
		_ = log.Logger.Sync()
		time.Sleep(time.Second)
	}()

	table, err := hosts.Load(option.Hosts)
	if err != nil {
		log.Sugar.Error(err)
		return
	}
	if err = table.Watch(); err != nil {
		log.Sugar.Warnf("hosts watch disabled, error=[%+v]", err)
	}
	defer table.Close()

	queries := pending.New(time.Duration(option.PendingTTL) * time.Second)
	queries.Start()
	defer queries.Stop()

	var r *relay.Relay
	if r, err = relay.New(relay.Config{
		Local:    option.Local,
		Remote:   option.Remote,
		Upstream: option.Upstream,
	}, table, queries); err != nil {
		log.Sugar.Error(err)
		return
	}

	log.Sugar.Infof("relay %s -> %s via %s, %d hosts", option.Local, option.Upstream, option.Remote, table.Len())

	// gorelay is running until os exit or a socket fault
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = r.Run(ctx); err != nil {
		log.Sugar.Error(err)
		return
	}
	log.Sugar.Info("relay stopped")
}

func applyFallbacks() {
	option.Local = fallback(option.Local, "LOCAL_ADDR", "127.0.0.1:53")
	option.Remote = fallback(option.Remote, "REMOTE_ADDR", "0.0.0.0:10053")
	option.Upstream = fallback(option.Upstream, "UPSTREAM_ADDR", "10.3.9.45:53")
	option.Hosts = fallback(option.Hosts, "HOSTS_PATH", "hosts.txt")
}

func fallback(value, key, def string) string {
	if len(value) > 0 {
		return value
	}
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func initLog() error {
	lc := log.Config{
		File:       option.Log.File,
		STDOUT:     option.Log.STDOUT,
		MaxAge:     2,
		MaxSize:    10,
		MaxBackups: 100,
	}

	if option.Log.Verbose {
		lc.Level = -1
	}

	if err := log.Init(lc); err != nil {
		fmt.Println("log init error", err)
		return err
	}

	return nil
}
