// Package batch runs one mailbox action over several item IDs and reports
// per-item outcomes, so a single failed ID does not hide the others.
package batch
