// Package config loads runtime configuration for the gophdrive uploader CLI.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file passed to Load.
//  3. Environment: GOPHDRIVE_SERVER, GOPHDRIVE_TOKEN, GOPHDRIVE_CHUNK_MULTIPLIER,
//     GOPHDRIVE_TIMEOUT, GOPHDRIVE_LOG_LEVEL.
//
// Command-line flags are applied on top by the cobra commands in cmd/client.
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "token": "secret",
//	  "chunk_multiplier": 10,
//	  "timeout": "2m"
//	}
package config
