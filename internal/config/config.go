package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"

	"github.com/kidcolor/colorbook/pkg/types"
)

// Defaults applied by Load when a value is not configured.
const (
	DefaultHistoryLimit      = 20
	DefaultPaletteSize       = 8
	DefaultMaxImageDimension = 512
	DefaultStorageBackend    = "file"
	DefaultRedisAddr         = "127.0.0.1:6379"
	DefaultNamespace         = "colorbook"
	DefaultSearchURL         = "https://api.unsplash.com"
	DefaultSearchRate        = 1.0
	DefaultSearchRetries     = 3
	DefaultSearchTimeoutMS   = 10000
)

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// Load loads configuration from multiple sources (priority order):
// 1. .env in the directory (only sets variables that are not already set)
// 2. Global config (~/.config/colorbook/)
// 3. Project config (.colorbook/ in directory)
// 4. COLORBOOK_CONFIG file
// 5. Environment variables
//
// Defaults are applied last, so every optional section is non-nil on return.
func Load(directory string) (*types.Config, error) {
	if directory != "" {
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	config := &types.Config{}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string) error {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil
		}
		if loaded[absPath] {
			return nil
		}
		if err := loadConfigFile(path, config); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		loaded[absPath] = true
		return nil
	}

	var paths []string

	globalPath := GetPaths().Config
	paths = append(paths,
		filepath.Join(globalPath, "colorbook.json"),
		filepath.Join(globalPath, "colorbook.jsonc"),
	)

	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".colorbook")
		paths = append(paths,
			filepath.Join(projectConfigDir, "colorbook.json"),
			filepath.Join(projectConfigDir, "colorbook.jsonc"),
		)
	}

	if configPath := os.Getenv("COLORBOOK_CONFIG"); configPath != "" {
		paths = append(paths, configPath)
	}

	for _, p := range paths {
		if err := loadOnce(p); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(config)
	ApplyDefaults(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)
	data = interpolate(data)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return &ParseError{Path: path, Err: err}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// ParseError reports a config file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "parse config " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// interpolate processes {env:VAR} placeholders.
func interpolate(data []byte) []byte {
	str := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
	return []byte(str)
}

// mergeConfig merges source config into target. Later sources replace whole
// sections field by field.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}

	if source.History != nil {
		if target.History == nil {
			target.History = &types.HistoryConfig{}
		}
		if source.History.Limit > 0 {
			target.History.Limit = source.History.Limit
		}
	}

	if source.Palette != nil {
		if target.Palette == nil {
			target.Palette = &types.PaletteConfig{}
		}
		if source.Palette.Size > 0 {
			target.Palette.Size = source.Palette.Size
		}
		if source.Palette.MaxImageDimension > 0 {
			target.Palette.MaxImageDimension = source.Palette.MaxImageDimension
		}
	}

	if source.Storage != nil {
		if target.Storage == nil {
			target.Storage = &types.StorageConfig{}
		}
		if source.Storage.Backend != "" {
			target.Storage.Backend = source.Storage.Backend
		}
		if source.Storage.RedisAddr != "" {
			target.Storage.RedisAddr = source.Storage.RedisAddr
		}
		if source.Storage.RedisDB != 0 {
			target.Storage.RedisDB = source.Storage.RedisDB
		}
		if source.Storage.Namespace != "" {
			target.Storage.Namespace = source.Storage.Namespace
		}
	}

	if source.Search != nil {
		if target.Search == nil {
			target.Search = &types.SearchConfig{}
		}
		if source.Search.BaseURL != "" {
			target.Search.BaseURL = source.Search.BaseURL
		}
		if source.Search.APIKey != "" {
			target.Search.APIKey = source.Search.APIKey
		}
		if source.Search.RatePerSecond > 0 {
			target.Search.RatePerSecond = source.Search.RatePerSecond
		}
		if source.Search.MaxRetries > 0 {
			target.Search.MaxRetries = source.Search.MaxRetries
		}
		if source.Search.TimeoutMS > 0 {
			target.Search.TimeoutMS = source.Search.TimeoutMS
		}
	}

	if source.Connectivity != nil {
		if target.Connectivity == nil {
			target.Connectivity = &types.ConnectivityConfig{}
		}
		if source.Connectivity.StatusFile != "" {
			target.Connectivity.StatusFile = source.Connectivity.StatusFile
		}
		if source.Connectivity.InitialOnline != nil {
			target.Connectivity.InitialOnline = source.Connectivity.InitialOnline
		}
	}

	if source.Vectorizer != nil && len(source.Vectorizer.Command) > 0 {
		target.Vectorizer = &types.VectorizerConfig{
			Command: append([]string(nil), source.Vectorizer.Command...),
		}
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if level := os.Getenv("COLORBOOK_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if dir := os.Getenv("COLORBOOK_DATA_DIR"); dir != "" {
		config.DataDir = dir
	}

	if v := os.Getenv("COLORBOOK_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			if config.History == nil {
				config.History = &types.HistoryConfig{}
			}
			config.History.Limit = n
		}
	}

	if backend := os.Getenv("COLORBOOK_STORAGE_BACKEND"); backend != "" {
		if config.Storage == nil {
			config.Storage = &types.StorageConfig{}
		}
		config.Storage.Backend = strings.ToLower(strings.TrimSpace(backend))
	}
	if addr := os.Getenv("COLORBOOK_REDIS_ADDR"); addr != "" {
		if config.Storage == nil {
			config.Storage = &types.StorageConfig{}
		}
		config.Storage.RedisAddr = addr
	}

	if key := os.Getenv("COLORBOOK_SEARCH_API_KEY"); key != "" {
		if config.Search == nil {
			config.Search = &types.SearchConfig{}
		}
		config.Search.APIKey = key
	}
	if u := os.Getenv("COLORBOOK_SEARCH_URL"); u != "" {
		if config.Search == nil {
			config.Search = &types.SearchConfig{}
		}
		config.Search.BaseURL = u
	}
}

// ApplyDefaults fills every unset value with its default.
func ApplyDefaults(config *types.Config) {
	if config.LogLevel == "" {
		config.LogLevel = "INFO"
	}
	if config.History == nil {
		config.History = &types.HistoryConfig{}
	}
	if config.History.Limit <= 0 {
		config.History.Limit = DefaultHistoryLimit
	}
	if config.Palette == nil {
		config.Palette = &types.PaletteConfig{}
	}
	if config.Palette.Size <= 0 {
		config.Palette.Size = DefaultPaletteSize
	}
	if config.Palette.MaxImageDimension <= 0 {
		config.Palette.MaxImageDimension = DefaultMaxImageDimension
	}
	if config.Storage == nil {
		config.Storage = &types.StorageConfig{}
	}
	if config.Storage.Backend == "" {
		config.Storage.Backend = DefaultStorageBackend
	}
	if config.Storage.RedisAddr == "" {
		config.Storage.RedisAddr = DefaultRedisAddr
	}
	if config.Storage.Namespace == "" {
		config.Storage.Namespace = DefaultNamespace
	}
	if config.Search == nil {
		config.Search = &types.SearchConfig{}
	}
	if config.Search.BaseURL == "" {
		config.Search.BaseURL = DefaultSearchURL
	}
	if config.Search.RatePerSecond <= 0 {
		config.Search.RatePerSecond = DefaultSearchRate
	}
	if config.Search.MaxRetries <= 0 {
		config.Search.MaxRetries = DefaultSearchRetries
	}
	if config.Search.TimeoutMS <= 0 {
		config.Search.TimeoutMS = DefaultSearchTimeoutMS
	}
	if config.Connectivity == nil {
		config.Connectivity = &types.ConnectivityConfig{}
	}
	if config.Vectorizer == nil {
		config.Vectorizer = &types.VectorizerConfig{}
	}
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
