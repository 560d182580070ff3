// Package cache stores finished audio files under content-addressed keys.
//
// Keys are derived from the platform and track identifier, so any URL
// variant that resolves to the same track maps to the same entry. Writes
// go through a temp-file-plus-rename publish step guarded by a file lock,
// and concurrent requests for a missing key are coalesced so the fill
// work runs once.
package cache
