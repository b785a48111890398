// Package scheduling turns send intents into queue entries.
//
// The engine owns two decisions: when an entry fires (the subscriber's
// local delivery time when a timezone is known, the base instant
// otherwise) and the entry's sort key, which must be unique even when many
// entries share a due time.
//
// Sort keys are a 13-digit zero-padded millisecond due time, a dot, and a
// 9-digit random tiebreaker, so lexical order equals time order. Keys
// written in the older variable-width form still parse.
package scheduling
