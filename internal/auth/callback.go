package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/steveyegge/dupes/internal/types"
)

type callbackResult struct {
	session *types.Session
	err     error
}

// CallbackServer listens on the loopback redirect URI and completes the
// login when the identity provider redirects the browser back.
type CallbackServer struct {
	auth   *Authenticator
	addr   string
	path   string
	logger *slog.Logger

	srv    *http.Server
	result chan callbackResult
}

// NewCallbackServer prepares a server for redirectURI, which must be an
// http URL on a loopback host with an explicit port.
func NewCallbackServer(a *Authenticator, redirectURI string) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("redirect URI must use http for a local callback (got %q)", redirectURI)
	}
	host := u.Hostname()
	if host != "localhost" {
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			return nil, fmt.Errorf("redirect URI must point at this machine (got host %q)", host)
		}
	}
	if u.Port() == "" {
		return nil, fmt.Errorf("redirect URI must include a port (got %q)", redirectURI)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	s := &CallbackServer{
		auth:   a,
		addr:   u.Host,
		path:   path,
		logger: a.logger,
		result: make(chan callbackResult, 1),
	}
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler routes the callback path.
func (s *CallbackServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get(s.path, s.handleCallback)
	return r
}

// Start begins listening in the background.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server stopped", "error", err)
		}
	}()
	s.logger.Debug("callback server listening", "addr", s.addr, "path", s.path)
	return nil
}

// Wait blocks until a callback has been handled or ctx is done.
func (s *CallbackServer) Wait(ctx context.Context) (*types.Session, error) {
	select {
	case res := <-s.result:
		return res.session, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops the server.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var res callbackResult
	if e := q.Get("error"); e != "" {
		res.err = fmt.Errorf("authorization denied: %s %s", e, q.Get("error_description"))
	} else {
		res.session, res.err = s.auth.HandleCallback(r.Context(), q.Get("code"), q.Get("state"))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if res.err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "<html><body><h1>Login failed</h1><p>%s</p></body></html>", html.EscapeString(res.err.Error()))
	} else {
		fmt.Fprint(w, "<html><body><h1>Logged in</h1><p>You can close this window and return to the terminal.</p></body></html>")
	}

	select {
	case s.result <- res:
	default:
		// A result was already delivered; later hits are ignored.
	}
}
