package credentials

// Credentials represents the stored API credentials in credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential holds the API key for a single model or embedding provider.
type ProviderCredential struct {
	APIKey string `toml:"api_key"`
}

// Source reports where a resolved key came from.
type Source string

const (
	SourceNone     Source = ""
	SourceExplicit Source = "explicit"
	SourceFile     Source = "credentials.toml"
	SourceEnv      Source = "env"
)
