// Package google configures Google OAuth for the calendar agent.
//
// The web server uses NewOAuthConfig and AuthURL for the browser
// authorization code flow. Terminal commands sign in once with a
// LoopbackFlow, store the token under the user's cache directory, and obtain
// credentials afterwards through a FileTokenProvider. A StaticTokenProvider
// serves a bare access token supplied by the environment.
package google
