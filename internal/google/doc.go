// Package google obtains and persists the OAuth2 credentials housemgr uses
// for the Gmail API.
//
// The client secrets JSON comes from the Google Cloud console. The token is
// stored in Google's authorized-user JSON layout and rewritten whenever it is
// refreshed or newly authorized. Without a usable token, Credentials runs the
// installed-app flow: a loopback server on a random port receives the
// authorization code (with PKCE) after the user approves access in the
// browser.
package google
