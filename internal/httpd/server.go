package httpd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// TLSFiles names the PEM assets the secure listener is built from. Chain is
// optional; Certificate and Key are not.
type TLSFiles struct {
	Certificate string
	Key         string
	Chain       string
}

// timerTask is a periodic maintenance job run alongside the accept loop.
type timerTask struct {
	name     string
	interval time.Duration
	fn       func()
}

// Server accepts TLS connections and hands each one to a Worker goroutine.
// An additional plaintext listener can be enabled for setups behind a
// terminating proxy.
type Server struct {
	Addr      string
	PlainAddr string
	TLS       TLSFiles
	Worker    *Worker
	Log       *slog.Logger

	timers []timerTask

	mu        sync.Mutex
	listeners []net.Listener
}

// AddTimer registers a periodic job that runs for the lifetime of the
// server. All timers must be added before Serve is called.
func (s *Server) AddTimer(name string, interval time.Duration, fn func()) {
	s.timers = append(s.timers, timerTask{name: name, interval: interval, fn: fn})
}

// tlsConfig assembles the server certificate from the configured PEM files.
// The chain file, when present, is appended to the leaf certificate. Both
// RSA and EC keys are accepted.
func (s *Server) tlsConfig() (*tls.Config, error) {
	certPEM, err := os.ReadFile(s.TLS.Certificate)
	if err != nil {
		return nil, fmt.Errorf("reading certificate %s: %w", s.TLS.Certificate, err)
	}
	keyPEM, err := os.ReadFile(s.TLS.Key)
	if err != nil {
		return nil, fmt.Errorf("reading private key %s: %w", s.TLS.Key, err)
	}
	if s.TLS.Chain != "" {
		chainPEM, err := os.ReadFile(s.TLS.Chain)
		if err != nil {
			return nil, fmt.Errorf("reading certificate chain %s: %w", s.TLS.Chain, err)
		}
		certPEM = append(certPEM, '\n')
		certPEM = append(certPEM, chainPEM...)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("loading key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Serve opens the listeners, starts the background timers, and blocks until
// the context is cancelled. It fails immediately when the TLS assets cannot
// be loaded. There is no plaintext fallback: a missing certificate is fatal,
// not a downgrade.
func (s *Server) Serve(ctx context.Context) error {
	var wg sync.WaitGroup

	if s.Addr != "" {
		tlsConf, err := s.tlsConfig()
		if err != nil {
			return err
		}

		secure, err := tls.Listen("tcp", s.Addr, tlsConf)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", s.Addr, err)
		}
		s.track(secure)
		s.Log.Info("https listener started", "addr", s.Addr)

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.acceptLoop(secure)
		}()
	}

	if s.PlainAddr != "" {
		plain, err := net.Listen("tcp", s.PlainAddr)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("listening on %s: %w", s.PlainAddr, err)
		}
		s.track(plain)
		s.Log.Info("http listener started", "addr", s.PlainAddr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.acceptLoop(plain)
		}()
	}

	stopTimers := s.startTimers()

	<-ctx.Done()
	stopTimers()
	s.closeListeners()
	wg.Wait()
	return ctx.Err()
}

func (s *Server) track(l net.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listeners {
		l.Close()
	}
	s.listeners = nil
}

func (s *Server) acceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.Log.Warn("accept failed", "error", err)
			continue
		}
		go s.Worker.Handle(conn)
	}
}

// startTimers launches each registered timer in its own goroutine and
// returns a function that stops them all.
func (s *Server) startTimers() func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, task := range s.timers {
		wg.Add(1)
		go func(task timerTask) {
			defer wg.Done()
			ticker := time.NewTicker(task.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					task.fn()
				case <-done:
					return
				}
			}
		}(task)
	}
	return func() {
		close(done)
		wg.Wait()
	}
}
