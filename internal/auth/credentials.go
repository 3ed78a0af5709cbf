package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// ErrAuth marks credential-flow failures. There is no retry behind it.
var ErrAuth = errors.New("authorization failed")

// Provider loads the service's Drive credentials. A persisted token is reused
// while valid (or refreshable); otherwise an interactive authorization-code
// flow on a loopback listener obtains a new one and persists it.
type Provider struct {
	credentialsFile string
	tokenFile       string
	scopes          []string
	log             *zap.Logger
}

func NewProvider(log *zap.Logger) *Provider {
	credentialsFile := os.Getenv("GOOGLE_CREDENTIALS_FILE")
	if credentialsFile == "" {
		credentialsFile = "credentials.json"
	}

	tokenFile := os.Getenv("GOOGLE_TOKEN_FILE")
	if tokenFile == "" {
		tokenFile = "token.json"
	}

	return &Provider{
		credentialsFile: credentialsFile,
		tokenFile:       tokenFile,
		scopes:          []string{drive.DriveScope},
		log:             log,
	}
}

// Client returns an HTTP client authenticated against the storage provider.
func (p *Provider) Client(ctx context.Context) (*http.Client, error) {
	data, err := os.ReadFile(p.credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading client secrets: %v", ErrAuth, err)
	}

	cfg, err := google.ConfigFromJSON(data, p.scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing client secrets: %v", ErrAuth, err)
	}

	tok, err := p.tokenFromFile()
	if err == nil && (tok.Valid() || tok.RefreshToken != "") {
		return cfg.Client(ctx, tok), nil
	}

	tok, err = p.authorize(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	if err := p.saveToken(tok); err != nil {
		return nil, fmt.Errorf("%w: persisting token: %v", ErrAuth, err)
	}

	return cfg.Client(ctx, tok), nil
}

// authorize runs the interactive consent flow: a loopback listener receives
// the redirect, the user opens the printed URL in a browser.
func (p *Provider) authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start loopback listener: %w", err)
	}
	defer ln.Close()

	redirect := *cfg
	redirect.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- errors.New("state mismatch on consent redirect")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errCh <- errors.New("consent redirect carried no code")
			return
		}
		fmt.Fprintln(w, "Authorization received. You may close this window.")
		codeCh <- code
	})}
	go srv.Serve(ln)
	defer srv.Close()

	p.log.Info("visit the consent URL to authorize this service",
		zap.String("url", redirect.AuthCodeURL(state, oauth2.AccessTypeOffline)))

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return redirect.Exchange(ctx, code)
}

func (p *Provider) tokenFromFile() (*oauth2.Token, error) {
	f, err := os.Open(p.tokenFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}

	return tok, nil
}

func (p *Provider) saveToken(tok *oauth2.Token) error {
	f, err := os.OpenFile(p.tokenFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(tok)
}
