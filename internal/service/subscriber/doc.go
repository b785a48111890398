// Package subscriber owns the subscriber lifecycle and the trigger
// reconciler.
//
// Every mutating request runs the same state machine: look the address up
// by its canonical form, create or merge, then run the requested trigger
// (confirmation email or autoresponder enrollment) only when the request
// actually changed the subscriber's tag set. Addresses on the blocked
// domain list are accepted without side effects.
//
// Pending queue entries carry a copy of the subscriber. Operations that
// change copied fields rewrite those copies through the queue service
// before returning.
package subscriber
