// Package config provides configuration loading, merging, and path management for colorbook.
//
// # Configuration Loading
//
// Load searches for and merges configuration from multiple sources in priority order:
//
//  1. .env in the working directory (loaded with godotenv, never overriding set variables)
//  2. Global config (~/.config/colorbook/colorbook.json or .jsonc)
//  3. Project config (<dir>/.colorbook/colorbook.json or .jsonc)
//  4. COLORBOOK_CONFIG file
//  5. Environment variables
//
// Missing files are skipped. A file that exists but cannot be decoded fails the load
// with a *ParseError.
//
// # Supported Formats
//
// Both JSON and JSONC are accepted; comments are stripped with tidwall/jsonc before
// decoding. String values may reference environment variables with {env:VAR_NAME}.
//
//	{
//	  // keep twenty steps of undo
//	  "history": { "limit": 20 },
//	  "storage": { "backend": "file" },
//	  "search": { "apiKey": "{env:UNSPLASH_KEY}" }
//	}
//
// # Environment Variable Overrides
//
//   - COLORBOOK_LOG_LEVEL - log level (DEBUG|INFO|WARN|ERROR)
//   - COLORBOOK_DATA_DIR - data directory
//   - COLORBOOK_HISTORY_LIMIT - undo history bound
//   - COLORBOOK_STORAGE_BACKEND - "file" or "redis"
//   - COLORBOOK_REDIS_ADDR - redis host:port
//   - COLORBOOK_SEARCH_API_KEY - image search API key
//   - COLORBOOK_SEARCH_URL - image search base URL
//   - COLORBOOK_CONFIG - path to an extra config file
//
// # Path Management
//
// Paths follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/colorbook (XDG_DATA_HOME)
//   - Config: ~/.config/colorbook (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/colorbook (XDG_CACHE_HOME)
//   - State: ~/.local/state/colorbook (XDG_STATE_HOME)
package config
