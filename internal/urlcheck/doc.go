// Package urlcheck validates user-supplied music URLs before anything else
// touches them: length and scheme checks, an explicit host allow-list,
// private-address screening against SSRF (including resolved DNS answers),
// and strict per-platform track ID extraction. Ambiguous input fails closed.
package urlcheck
