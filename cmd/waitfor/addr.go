package main

import (
	"fmt"
	"net"
	"strings"

	"github.com/rbroggi/souqly/internal/config"
)

// backendAddr returns the first host:port of the configured backend URL. It is empty for the
// memory backend.
func backendAddr(cfg *config.Config) (string, error) {
	var raw, defaultPort string
	switch cfg.Backend {
	case config.BackendPostgres:
		raw, defaultPort = cfg.Postgres.URL, "5432"
	case config.BackendMongo:
		raw, defaultPort = cfg.Mongo.URL, "27017"
	default:
		return "", nil
	}
	_, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "", fmt.Errorf("%s url has no scheme", cfg.Backend)
	}
	// mongo seed lists are comma separated, which url.Parse rejects
	authority, _, _ := strings.Cut(rest, "/")
	authority, _, _ = strings.Cut(authority, "?")
	if at := strings.LastIndex(authority, "@"); at >= 0 {
		authority = authority[at+1:]
	}
	host, _, _ := strings.Cut(authority, ",")
	if host == "" {
		return "", fmt.Errorf("%s url has no host", cfg.Backend)
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, defaultPort)
	}
	return host, nil
}
