// Package segmentation validates and normalizes broadcast audience
// predicates and hands accepted broadcasts to the external resolver.
//
// Resolution happens asynchronously and cannot recover from a malformed
// request, so every structural check runs before anything is stored. At
// most one broadcast is in flight at a time, guarded by a lease.
package segmentation
