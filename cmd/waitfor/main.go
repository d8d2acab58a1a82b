package main

import (
	"flag"
	"net"
	"time"

	"github.com/rbroggi/souqly/internal/config"
	log "github.com/sirupsen/logrus"
)

var (
	configPath = flag.String("config", "", "path of an optional YAML configuration file")
	addr       = flag.String("addr", "", "host:port to wait for. Defaults to the configured backend")
	attempts   = flag.Int("attempts", 20, "maximum number of connection attempts")
)

// Waits until the configured key space accepts TCP connections.
func main() {
	flag.Parse()

	target := *addr
	if target == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.WithError(err).Fatal("error loading config")
		}
		if target, err = backendAddr(cfg); err != nil {
			log.WithError(err).Fatal("could not derive the backend address")
		}
	}
	if target == "" {
		log.Info("memory backend, nothing to wait for")
		return
	}

	const timeout = 10 * time.Second
	for i := 1; i <= *attempts; i++ {
		conn, err := net.DialTimeout("tcp", target, timeout)
		if err == nil {
			conn.Close()
			log.WithField("addr", target).Info("TCP connection available")
			return
		}
		log.WithError(err).WithField("addr", target).WithField("attempt", i).Info("connection not yet available")
		time.Sleep(1 * time.Second)
	}
	log.WithField("addr", target).Fatal("could not open TCP connection after max attempts")
}
