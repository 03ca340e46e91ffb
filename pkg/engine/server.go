// Package engine runs the mock server: one TCP listener whose connections
// are dispatched between plaintext HTTP and TLS (with on-demand certificate
// minting), a data plane that matches requests against stored mocks and
// rules, and the control plane under /__httpmock__/.
package engine

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/httpmock/httpmock/internal/state"
	"github.com/httpmock/httpmock/pkg/config"
	"github.com/httpmock/httpmock/pkg/logging"
)

// Server is one running mock server instance.
type Server struct {
	cfg   *config.ServerConfig
	state *state.Manager
	log   *slog.Logger

	client   *upstreamClient
	resolver *CertResolver

	mu       sync.Mutex
	listener net.Listener
	port     int
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	httpSrv  *http.Server
	httpsSrv *http.Server
	httpLn   *chanListener
	httpsLn  *chanListener
	h2       *http2.Server
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer creates a Server with the given configuration.
func NewServer(cfg *config.ServerConfig, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = &config.ServerConfig{}
	}
	s := &Server{
		cfg:    cfg,
		log:    logging.Nop(),
		client: newUpstreamClient(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = state.NewManager(cfg.HistoryLimit, s.log)
	return s
}

// State exposes the state manager for in-process adapters.
func (s *Server) State() *state.Manager {
	return s.state
}

// Port returns the bound port; valid after Start.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Host returns the host clients should dial, mirroring the bind address.
func (s *Server) Host() string {
	if s.cfg.Expose {
		return "0.0.0.0"
	}
	return "127.0.0.1"
}

// Addr returns host:port; valid after Start.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host(), s.Port())
}

// Start binds the listener, loads static mocks, and begins accepting
// connections. It fails fast when the socket cannot bind.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server already running")
	}

	if s.cfg.StaticMockDir != "" {
		defs, err := config.LoadStaticMocks(s.cfg.StaticMockDir)
		if err != nil {
			return fmt.Errorf("loading static mocks: %w", err)
		}
		for _, def := range defs {
			if _, err := s.state.AddMock(def, true); err != nil {
				return fmt.Errorf("adding static mock: %w", err)
			}
		}
	}

	if s.cfg.HTTPSEnabled() {
		certPEM, keyPEM, err := s.cfg.TLS.LoadCA()
		if err != nil {
			return err
		}
		s.resolver, err = NewCertResolver(certPEM, keyPEM)
		if err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", s.cfg.BindAddr())
	if err != nil {
		return fmt.Errorf("binding listener: %w", err)
	}
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.httpLn = newChanListener(ln.Addr())
	s.httpSrv = &http.Server{Handler: s.dataPlaneHandler("http")}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(s.httpLn); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http serve loop exited", "error", err)
		}
	}()

	if s.resolver != nil {
		s.httpsLn = newChanListener(ln.Addr())
		s.httpsSrv = &http.Server{Handler: s.dataPlaneHandler("https")}
		s.h2 = &http2.Server{}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.httpsSrv.Serve(s.httpsLn); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("https serve loop exited", "error", err)
			}
		}()
	}

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	s.log.Info("mock server listening", "addr", ln.Addr().String(), "https", s.resolver != nil)
	return nil
}

// Stop shuts the server down: the accept loop exits, in-flight connections
// are allowed to complete until the context expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	ln := s.listener
	s.mu.Unlock()

	cancel()
	_ = ln.Close()

	var errs []error
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.httpsSrv != nil {
		if err := s.httpsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.httpLn.Close()
	if s.httpsLn != nil {
		s.httpsLn.Close()
	}

	// A connection parked before the HTTP layer (sniff, TLS handshake) is
	// invisible to Shutdown, so the drain is bounded by the same context.
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

// acceptLoop accepts TCP connections and dispatches each on its own
// goroutine.
func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.dispatch(ctx, conn)
		}()
	}
}

// peekTimeout is how long dispatch waits for the first byte of a new
// connection before giving up on it.
const peekTimeout = 10 * time.Second

// dispatch peeks the first byte of the stream without consuming it. A TLS
// ClientHello starts with the handshake record type 0x16; everything else is
// treated as plaintext HTTP.
func (s *Server) dispatch(ctx context.Context, conn net.Conn) {
	// Bound the sniff so a connection that never sends a byte cannot pin
	// the dispatcher goroutine past shutdown.
	_ = conn.SetReadDeadline(time.Now().Add(peekTimeout))
	pc := newPeekConn(conn)
	head, err := pc.Peek(1)
	if err != nil {
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	if head[0] == 0x16 {
		if s.resolver == nil {
			s.log.Debug("TLS stream received but HTTPS is disabled; dropping")
			_ = conn.Close()
			return
		}
		s.serveTLS(ctx, pc)
		return
	}

	s.httpLn.Push(pc)
}

// serveTLS completes the handshake with the certificate resolver and routes
// the decrypted stream by the negotiated ALPN protocol.
func (s *Server) serveTLS(ctx context.Context, conn net.Conn) {
	tlsConn := tls.Server(conn, s.resolver.tlsServerConfig())
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		s.log.Debug("TLS handshake failed", "error", err)
		_ = tlsConn.Close()
		return
	}

	if tlsConn.ConnectionState().NegotiatedProtocol == "h2" {
		s.h2.ServeConn(tlsConn, &http2.ServeConnOpts{
			BaseConfig: s.httpsSrv,
			Handler:    s.httpsSrv.Handler,
		})
		return
	}
	s.httpsLn.Push(tlsConn)
}
