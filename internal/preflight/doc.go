// Package preflight provides readiness checks for the external tools,
// credentials, and filesystem paths a running pipeline depends on.
//
// The CLI "jukebox config check" command runs RunAll and renders the
// results so a misconfigured install fails loudly before the first
// request instead of midway through a download.
package preflight
