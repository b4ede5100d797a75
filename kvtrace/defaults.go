// Package kvtrace holds project-wide defaults shared by config and the CLI.
package kvtrace

import "time"

const (
	DefaultAppName      = "kvtrace"
	DefaultConfigPath   = "/etc/kvtrace"
	DefaultEnvPrefix    = "KVTRACE"
	DefaultStoreType    = "redis"
	DefaultRedisAddr    = "localhost:6379"
	DefaultLibSQLPath   = "./data/kvtrace.db"
	DefaultPageTTL      = 10 * time.Second
	DefaultFetchTimeout = 30 * time.Second
)
