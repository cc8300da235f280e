package config

import "time"

// Options configures the config loader.
type Options struct {
	// YAMLPath is the path to the primary YAML config file.
	YAMLPath string

	// EnvPath is the path to the fallback .env file, used only when YAML is absent.
	EnvPath string
}

// Provider is the interface consumers depend on for reading configuration.
// Implementations must be safe for concurrent use.
type Provider interface {
	// GetString returns the value associated with the key as a string.
	GetString(key string) string

	// GetInt returns the value associated with the key as an int.
	GetInt(key string) int

	// GetBool returns the value associated with the key as a bool.
	GetBool(key string) bool

	// GetDuration returns the value associated with the key as a time.Duration.
	GetDuration(key string) time.Duration

	// IsSet checks whether the key is set in the config.
	IsSet(key string) bool

	// WatchChanges starts watching the config file for changes (YAML only).
	// Non-blocking: spawns a background goroutine.
	WatchChanges()

	// OnChange registers a callback that fires after a successful config reload.
	OnChange(fn func())

	// StopWatching stops the file watcher and cleans up resources.
	StopWatching()

	// Source returns which config source is active: "yaml" or "env".
	Source() string
}

// Settings is the resolved SDK configuration consumed by the client and the
// request pipeline.
type Settings struct {
	// EndpointURL is the base URL of the application server.
	EndpointURL string

	// PathPrefix is prepended to every controller method path.
	PathPrefix string

	// RequestTimeout is the fixed client-side timeout applied to each
	// dispatched request. It is independent of queue-level expiry.
	RequestTimeout time.Duration

	// LogLevel selects the slog level for the JSON logger.
	LogLevel string

	// StoreCredentials enables persistence of login credentials so a host
	// can re-authenticate after a restart. Credentials are stored encoded,
	// not encrypted.
	StoreCredentials bool

	// QueueTable names the persistent-store table holding reliable queues.
	QueueTable string

	// CredentialTable names the persistent-store table holding saved
	// credentials.
	CredentialTable string

	// InteractiveAuthMarker is the substring of a 403 body that diverts the
	// call to the interactive-auth collaborator instead of failing.
	InteractiveAuthMarker string

	// CorrelationCleanupPath is the server endpoint that releases retained
	// results for disposed reliable calls.
	CorrelationCleanupPath string
}

// Defaults returns the settings used when no provider value overrides them.
func Defaults() Settings {
	return Settings{
		PathPrefix:             "/rest",
		RequestTimeout:         30 * time.Second,
		LogLevel:               "info",
		QueueTable:             "reliable_queues",
		CredentialTable:        "connection",
		InteractiveAuthMarker:  "interactive-auth-required",
		CorrelationCleanupPath: "/ccleanup",
	}
}

// LoadSettings resolves Settings from a provider, falling back to Defaults
// for unset keys. A nil provider yields the defaults unchanged.
func LoadSettings(p Provider) Settings {
	s := Defaults()
	if p == nil {
		return s
	}
	if p.IsSet("sdk.endpoint_url") {
		s.EndpointURL = p.GetString("sdk.endpoint_url")
	}
	if p.IsSet("sdk.path_prefix") {
		s.PathPrefix = p.GetString("sdk.path_prefix")
	}
	if d := p.GetDuration("sdk.request_timeout"); d > 0 {
		s.RequestTimeout = d
	}
	if p.IsSet("logging.level") {
		s.LogLevel = p.GetString("logging.level")
	}
	if p.IsSet("sdk.store_credentials") {
		s.StoreCredentials = p.GetBool("sdk.store_credentials")
	}
	if p.IsSet("sdk.queue_table") {
		s.QueueTable = p.GetString("sdk.queue_table")
	}
	if p.IsSet("sdk.credential_table") {
		s.CredentialTable = p.GetString("sdk.credential_table")
	}
	if p.IsSet("sdk.interactive_auth_marker") {
		s.InteractiveAuthMarker = p.GetString("sdk.interactive_auth_marker")
	}
	if p.IsSet("sdk.correlation_cleanup_path") {
		s.CorrelationCleanupPath = p.GetString("sdk.correlation_cleanup_path")
	}
	return s
}
