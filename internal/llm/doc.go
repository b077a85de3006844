// Package llm wraps the OpenAI-compatible chat completions API used for
// script, phonetic, and storyboard generation. Requests carry their own
// model and reasoning effort; the client supplies retry with exponential
// backoff, Retry-After handling, JSON payload sanitization, and token
// usage with cost estimates from a pricing table.
package llm
