package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// appDir is the per-user cache directory name for stored tokens.
const appDir = "ai-calendar-agent"

// ErrNoToken is returned when no token is stored for an account.
var ErrNoToken = errors.New("no Google OAuth token found")

// NewOAuthConfig returns the authorization code flow configuration.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       DefaultOAuthScopes,
	}
}

// AuthURL returns the consent page URL. It asks for offline access and always
// shows the consent prompt so a refresh token is issued.
func AuthURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateAccountName ensures account names are safe to use in file names.
func validateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, hyphens and underscores are allowed", account)
	}
	return nil
}

// TokenFilePath returns where the token for account is stored.
func TokenFilePath(account string) string {
	return filepath.Join(userCacheDir(), appDir, "google-"+account+".token")
}

// HasToken reports whether a token is stored for account.
func HasToken(account string) bool {
	if validateAccountName(account) != nil {
		return false
	}
	_, err := os.Stat(TokenFilePath(account))
	return err == nil
}

// SaveToken stores tok for account as JSON, readable only by the user.
func SaveToken(account string, tok *oauth2.Token) error {
	if err := validateAccountName(account); err != nil {
		return err
	}
	if tok == nil {
		return fmt.Errorf("token cannot be nil")
	}

	path := TokenFilePath(account)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// LoadToken reads the stored token for account.
func LoadToken(account string) (*oauth2.Token, error) {
	if err := validateAccountName(account); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(TokenFilePath(account))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w for account %q", ErrNoToken, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file for account %q: %w", account, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w for account %q", ErrNoToken, account)
	}
	return &tok, nil
}

// DeleteToken removes the stored token for account. A missing token is not an error.
func DeleteToken(account string) error {
	if err := validateAccountName(account); err != nil {
		return err
	}
	if err := os.Remove(TokenFilePath(account)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

// savingTokenSource persists refreshed tokens.
type savingTokenSource struct {
	account string
	base    oauth2.TokenSource
	last    string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		// Best effort; the token stays valid in memory.
		_ = SaveToken(s.account, tok)
	}
	return tok, nil
}

// TokenSource returns a refreshing token source for the stored token of
// account. Refreshed tokens are written back to disk.
func TokenSource(ctx context.Context, conf *oauth2.Config, account string) (oauth2.TokenSource, error) {
	tok, err := LoadToken(account)
	if err != nil {
		return nil, err
	}
	base := conf.TokenSource(ctx, tok)
	return oauth2.ReuseTokenSource(nil, &savingTokenSource{account: account, base: base, last: tok.AccessToken}), nil
}

func userCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	if runtime.GOOS == "windows" {
		return os.TempDir()
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}
