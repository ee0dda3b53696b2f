package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// CallbackPath is the path the loopback listener serves the redirect on.
const CallbackPath = "/callback"

// LoopbackFlow signs a user in from the terminal. It listens on a loopback
// port, sends the user to the consent page, and exchanges the code that
// Google redirects back with.
type LoopbackFlow struct {
	// Config is copied; its RedirectURL is replaced by the loopback address.
	Config *oauth2.Config
	// OnAuthURL is called with the consent page URL once the listener is up.
	OnAuthURL func(url string)
	// Addr is the listen address (default "127.0.0.1:0").
	Addr string
}

type callbackResult struct {
	code string
	err  error
}

// Run performs the flow and returns the issued token.
func (f *LoopbackFlow) Run(ctx context.Context) (*oauth2.Token, error) {
	if f.Config == nil {
		return nil, errors.New("oauth config is required")
	}
	addr := f.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start loopback listener: %w", err)
	}

	conf := *f.Config
	conf.RedirectURL = "http://" + ln.Addr().String() + CallbackPath
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("state") != state:
			res.err = errors.New("state mismatch")
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New("no authorization code in callback")
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			_, _ = fmt.Fprintln(w, "Signed in. You can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if f.OnAuthURL != nil {
		f.OnAuthURL(AuthURL(&conf, state))
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := conf.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return tok, nil
	}
}
