// Package envconfig assembles the engine configuration from environment
// variables and an optional .env file. It fails fast on missing signing
// keys instead of inventing defaults.
package envconfig
