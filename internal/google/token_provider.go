package google

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

// TokenProvider supplies Google API credentials to commands that run outside
// a browser session.
type TokenProvider interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// StaticTokenProvider serves a fixed access token.
type StaticTokenProvider struct {
	AccessToken string
}

// TokenSource returns a source that always yields the access token.
func (p StaticTokenProvider) TokenSource(context.Context) (oauth2.TokenSource, error) {
	if p.AccessToken == "" {
		return nil, ErrNoToken
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.AccessToken, TokenType: "Bearer"}), nil
}

// FileTokenProvider serves the token stored on disk for an account,
// refreshing it with the OAuth client when it expires.
type FileTokenProvider struct {
	Config  *oauth2.Config
	Account string
}

// NewFileTokenProvider creates a provider for account.
func NewFileTokenProvider(conf *oauth2.Config, account string) *FileTokenProvider {
	return &FileTokenProvider{Config: conf, Account: account}
}

// TokenSource loads the stored token.
func (p *FileTokenProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if p.Config == nil {
		return nil, errors.New("oauth config is required")
	}
	return TokenSource(ctx, p.Config, p.Account)
}
