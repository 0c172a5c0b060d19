// Package conversation implements the chat engine: an ordered message log and
// the one-exchange-at-a-time protocol that fills it.
//
// A turn appends the user's message and an assistant placeholder stamped with
// a fresh exchange ID, asks the backend, then replaces the placeholder that
// carries that ID with the final reply. A second turn started while one is in
// flight is rejected with ErrBusy. If the log was reset in the meantime the
// placeholder is gone and the late reply is dropped.
//
// Failures never escape a turn: the placeholder becomes a fixed apology with
// action type "error" and the cause is kept for Error.
package conversation
