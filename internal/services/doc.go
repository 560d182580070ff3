// Package services defines shared utilities consumed by the acquisition
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that classify failures
//     into the stable error kinds surfaced to callers.
//   - The user-facing message catalog so no raw tool or provider output ever
//     leaks into a reply.
//   - Context helpers that stamp request IDs, stage names, and platforms for
//     logging and the request journal.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across stages.
package services
