// Package settings manages the shared Settings table: list definitions,
// autoresponder definitions, the blocked email domain list and the
// auto-confirm tag allow-list.
//
// Each setting is one item keyed by name with its payload under a single
// value attribute. The service depends on the Repository interface only.
package settings
