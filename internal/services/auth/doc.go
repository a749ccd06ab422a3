// Package auth groups passkey identity management: user records, WebAuthn
// ceremonies, bearer tokens, and their persistence.
package auth
