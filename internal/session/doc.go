// Package session keeps the web client's state in HTTP cookies: the Google
// access token, the OAuth state of a pending sign-in, and the last event the
// agent helped with. All cookies are HttpOnly. When an encryption key is
// configured, values are sealed with AES-256-GCM.
package session
