// Package credstore persists the single assistant credential under a fixed
// key, so that a session survives process restarts.
//
// Two backends exist: a JSON file in the user cache directory and a SQLite
// metadata table managed by goose migrations. Absence of the key means "no
// session"; neither backend stores anything else.
package credstore
