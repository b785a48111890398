// Package memory provides in-process implementations of the subscriber,
// queue and settings repositories. They back the "memory" store for local
// runs and the service tests; nothing is persisted across restarts.
package memory
