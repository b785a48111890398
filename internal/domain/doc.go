// Package domain defines the core business types for listflow.
//
// Types in this package are pure value objects with no database
// dependencies and no HTTP concerns. They are the shared language between
// handlers, services, and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No clients, no http.Request, no context.Context in struct fields
//   - JSON/DynamoDB tags are allowed (they're metadata, not behavior)
//   - Pure helpers on the types are allowed (tag set algebra, key parsing)
//   - Constants and enums belong here
//
// Timestamps are epoch milliseconds, matching the stored items.
package domain
