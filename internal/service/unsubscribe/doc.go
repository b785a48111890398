// Package unsubscribe issues and verifies the short-lived tokens that gate
// self-service unsubscribe, and applies all-email or per-list unsubscribes.
package unsubscribe
