package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"github.com/semmidev/keepsake/internal/infrastructure/logger"
)

// DriveAuth runs the one-time OAuth consent flow that yields the refresh
// token used by gdrive payload sources.
type DriveAuth struct {
	config *oauth2.Config
	logger *logger.Logger
	server *http.Server
	tokens chan *oauth2.Token
}

func NewDriveAuth(log *logger.Logger, clientSecretPath string) (*DriveAuth, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if clientSecretPath == "" {
		return nil, errors.New("client secret path cannot be empty")
	}

	b, err := os.ReadFile(clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret: %w", err)
	}

	return &DriveAuth{
		config: cfg,
		logger: log,
		tokens: make(chan *oauth2.Token, 1),
	}, nil
}

// Handler serves the consent redirect and the callback that exchanges the
// authorization code.
func (d *DriveAuth) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/google/drive", func(w http.ResponseWriter, r *http.Request) {
		authURL := d.config.AuthCodeURL("keepsake", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("GET /auth/google/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}

		token, err := d.config.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		if token.RefreshToken == "" {
			fmt.Fprintln(w, "⚠️ No refresh token returned. Revoke app access & re-authorize.")
			return
		}

		tokenJSON, err := json.MarshalIndent(token, "", "  ")
		if err != nil {
			http.Error(w, "failed to marshal token", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "✅ Refresh Token:\n%s\n\nFull Token JSON:\n%s", token.RefreshToken, tokenJSON)

		select {
		case d.tokens <- token:
		default:
		}
	})

	return mux
}

// Start serves Handler on addr in the background.
func (d *DriveAuth) Start(addr string) {
	d.server = &http.Server{
		Addr:              addr,
		Handler:           d.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		d.logger.Infof("Google Drive OAuth server listening on %s", addr)
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Errorf("OAuth server error: %v", err)
		}
	}()
}

// Wait blocks until a refresh token has been issued or ctx is done.
func (d *DriveAuth) Wait(ctx context.Context) (*oauth2.Token, error) {
	select {
	case token := <-d.tokens:
		return token, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *DriveAuth) Shutdown(ctx context.Context) error {
	if d.server == nil {
		return nil
	}

	if err := d.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown OAuth server: %w", err)
	}
	d.logger.Infof("OAuth server stopped")
	return nil
}
