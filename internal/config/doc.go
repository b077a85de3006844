// Package config loads, normalizes, and validates the TOML configuration for
// the production pipeline.
//
// Configuration resolution order: explicit --config path, then
// ~/.config/jgl/config.toml, then a project-local jgl.toml. Defaults cover
// every field, so a missing file yields a usable configuration as long as the
// required API keys are present in the environment. API keys are never stored
// in the sample config; they come from OPENAI_API_KEY, GOOGLE_API_KEY, and
// GOOGLE_SEARCH_CX (optionally via a .env file loaded by the CLI).
package config
