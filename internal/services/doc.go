// Package services defines shared utilities consumed by the pipeline step
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp entity keys, step names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (validation vs transient vs quota vs storage) consistent
//     across steps.
//
// Use these helpers when wiring new step logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
