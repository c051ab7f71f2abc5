package metastore

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"go.uber.org/zap"
)

// ServerOptions configures an embedded NATS server with JetStream enabled.
type ServerOptions struct {
	// Host to bind. Default: 127.0.0.1.
	Host string

	// Port to listen on. -1 picks a random free port.
	Port int

	// StoreDir holds JetStream data.
	StoreDir string

	// ServerName identifies the instance in logs.
	ServerName string

	// StartTimeout bounds the wait for the server to accept connections.
	StartTimeout time.Duration
}

// EmbeddedServer runs a NATS server inside the daemon so a single binary
// can serve the JetStream metadata backend without external infrastructure.
type EmbeddedServer struct {
	srv     *server.Server
	timeout time.Duration
}

// NewEmbeddedServer creates (but does not start) an embedded server.
func NewEmbeddedServer(opts ServerOptions, logger *zap.Logger) (*EmbeddedServer, error) {
	if opts.StoreDir == "" {
		return nil, errors.New("store dir is required")
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.ServerName == "" {
		opts.ServerName = "docspace_embedded"
	}
	if opts.StartTimeout == 0 {
		opts.StartTimeout = 5 * time.Second
	}

	srv, err := server.NewServer(&server.Options{
		ServerName: opts.ServerName,
		Host:       opts.Host,
		Port:       opts.Port,
		JetStream:  true,
		StoreDir:   opts.StoreDir,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	if logger != nil {
		srv.SetLogger(&natsLogger{log: logger.Named("nats").Sugar()}, false, false)
	}

	return &EmbeddedServer{srv: srv, timeout: opts.StartTimeout}, nil
}

// Start launches the server and waits until it accepts connections.
func (e *EmbeddedServer) Start() error {
	e.srv.Start()
	if !e.srv.ReadyForConnections(e.timeout) {
		e.srv.Shutdown()
		return fmt.Errorf("nats server not ready within %s", e.timeout)
	}
	return nil
}

// ClientURL returns the URL clients should connect to.
func (e *EmbeddedServer) ClientURL() string {
	return e.srv.ClientURL()
}

// Shutdown stops the server and waits for it to exit.
func (e *EmbeddedServer) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
}

// natsLogger forwards server logs to zap.
type natsLogger struct {
	log *zap.SugaredLogger
}

func (n *natsLogger) Noticef(format string, v ...any) { n.log.Infof(format, v...) }
func (n *natsLogger) Warnf(format string, v ...any)   { n.log.Warnf(format, v...) }
func (n *natsLogger) Fatalf(format string, v ...any)  { n.log.Errorf(format, v...) }
func (n *natsLogger) Errorf(format string, v ...any)  { n.log.Errorf(format, v...) }
func (n *natsLogger) Debugf(format string, v ...any)  { n.log.Debugf(format, v...) }
func (n *natsLogger) Tracef(format string, v ...any)  { n.log.Debugf(format, v...) }
