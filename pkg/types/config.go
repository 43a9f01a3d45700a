package types

// Config represents the colorbook configuration.
// Zero values mean "use the default" and are filled in by config.Load.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty"`

	// Logging
	LogLevel string `json:"logLevel,omitempty"` // DEBUG|INFO|WARN|ERROR

	// Data directory override; empty uses the XDG data dir.
	DataDir string `json:"dataDir,omitempty"`

	History      *HistoryConfig      `json:"history,omitempty"`
	Palette      *PaletteConfig      `json:"palette,omitempty"`
	Storage      *StorageConfig      `json:"storage,omitempty"`
	Search       *SearchConfig       `json:"search,omitempty"`
	Connectivity *ConnectivityConfig `json:"connectivity,omitempty"`
	Vectorizer   *VectorizerConfig   `json:"vectorizer,omitempty"`
}

// HistoryConfig bounds the undo history.
type HistoryConfig struct {
	Limit int `json:"limit,omitempty"`
}

// PaletteConfig is passed through to the vectorizer.
type PaletteConfig struct {
	Size              int `json:"size,omitempty"`
	MaxImageDimension int `json:"maxImageDimension,omitempty"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend   string `json:"backend,omitempty"` // "file" | "redis"
	RedisAddr string `json:"redisAddr,omitempty"`
	RedisDB   int    `json:"redisDB,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// SearchConfig configures the remote image search API.
type SearchConfig struct {
	BaseURL       string  `json:"baseURL,omitempty"`
	APIKey        string  `json:"apiKey,omitempty"`
	RatePerSecond float64 `json:"ratePerSecond,omitempty"`
	MaxRetries    int     `json:"maxRetries,omitempty"`
	TimeoutMS     int     `json:"timeoutMs,omitempty"`
}

// ConnectivityConfig configures the host connectivity signal.
type ConnectivityConfig struct {
	StatusFile    string `json:"statusFile,omitempty"`
	InitialOnline *bool  `json:"initialOnline,omitempty"`
}

// VectorizerConfig configures the external image vectorizer command.
type VectorizerConfig struct {
	Command []string `json:"command,omitempty"`
}
