// Package interaction correlates delivery-outcome events with the
// subscriber and queue entry that produced them.
//
// Opens and clicks stamp engagement timestamps, apply add-tag directives
// carried in the message tags and may auto-confirm the subscriber.
// Permanent bounces and complaints unsubscribe and purge pending entries.
package interaction
