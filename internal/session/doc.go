// Package session tracks whether the user is signed in.
//
// Store is a small state machine over the backend gateway:
//
//	Uninitialized -> Verifying -> Authenticated | Unauthenticated
//	Authenticated <-> Unauthenticated   (Logout / SetToken)
//	any -> Error                        (BeginHandshake failure)
//
// Passive restoration (Initialize) never surfaces an error; an explicit login
// (SetToken, CompleteHandshake) does. Every operation advances an epoch, and a
// result that settles after a newer operation started is discarded.
//
// The browser login is split in two: BeginHandshake returns the URL to open,
// and CompleteHandshake receives whatever the redirect delivered. Nothing but
// the redirect URL connects the two.
package session
