// Package constants holds configuration values shared across layers.
package constants

// Deployment environments.
const (
	EnvDevelop    = "develop"
	EnvTest       = "test"
	EnvProduction = "production"
)

// Pub/Sub providers.
const (
	PubSubProviderNone   = "none"
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
)

// Backing stores for sessions, rate limits and persistence.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Session cookie and lifetimes.
const (
	SessionCookieName = "healthbridge.sid"
)
