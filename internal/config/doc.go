// Package config provides configuration loading, merging, and path
// management for the chat orchestration runtime.
//
// # Configuration Loading
//
// Load merges configuration from two sources in priority order (later
// overrides earlier):
//
//  1. Global config (~/.config/atlaschat/atlaschat.{yaml,json})
//  2. Project config (<directory>/.atlaschat/atlaschat.{yaml,json})
//
// A `.env` file in the working directory (github.com/joho/godotenv) is
// loaded first so its variables are available to ${NAME} expansion.
//
// # Supported Formats
//
// Both YAML (gopkg.in/yaml.v3) and JSONC (github.com/tidwall/jsonc,
// comments stripped before parsing) are accepted, selected by file
// extension.
//
// # Variable Interpolation
//
// Any string field may reference `${NAME}`, resolved against the process
// environment at load time (spec §6). A referenced-but-unset name raises
// a ConfigurationError (see ExpandEnv).
//
// # Path Management
//
// Paths follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/atlaschat (XDG_DATA_HOME)
//   - Config: ~/.config/atlaschat (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/atlaschat (XDG_CACHE_HOME)
//   - State: ~/.local/state/atlaschat (XDG_STATE_HOME)
//
// On Windows these fall back to APPDATA.
//
// # Environment Variable Overrides
//
//   - ATLAS_MODEL - overrides the default model
//   - ATLAS_LOG_LEVEL - overrides the logging level
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY - fill in a provider's api_key
//     when the loaded config left it blank
package config
