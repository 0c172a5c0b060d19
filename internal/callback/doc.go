// Package callback receives the browser redirect that ends a login.
//
// The backend finishes its OAuth flow by redirecting the browser to the
// frontend: /auth/callback?token=... on success, /login?error=... on failure.
// Server listens on that frontend address, hands whatever arrived to the
// session store and reports the first outcome through Wait.
package callback
