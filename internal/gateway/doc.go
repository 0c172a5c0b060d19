// Package gateway is the only channel between inboxchat and the assistant
// backend. It turns typed calls into HTTP requests, carries the bearer
// credential, and classifies every failure into one of four kinds: network,
// auth, server or validation.
//
// An auth failure from any call discards the stored credential and notifies
// subscribers registered with OnCredentialWiped. Nothing is retried here.
package gateway
