package metrics

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exposes metrics via HTTP
type Exporter struct {
	addr   string
	server *http.Server
	ln     net.Listener
}

// NewExporter creates a metrics exporter serving g at path.
func NewExporter(addr, path string, g prometheus.Gatherer) *Exporter {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return &Exporter{
		addr: addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background. Bind errors are
// returned; serve errors after that are handed to onErr.
func (e *Exporter) Start(onErr func(error)) error {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}
	e.ln = ln

	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && onErr != nil {
			onErr(err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (e *Exporter) Addr() string {
	if e.ln != nil {
		return e.ln.Addr().String()
	}
	return e.addr
}

// Stop stops the exporter
func (e *Exporter) Stop() error {
	return e.server.Close()
}
