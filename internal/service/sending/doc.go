// Package sending defines the email delivery contract and the direct
// single-send operation.
//
// The SES adapter in internal/ses implements Sender. Services that send
// mail (confirmation, single send) depend on the interface only.
package sending
