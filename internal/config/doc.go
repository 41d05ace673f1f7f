// Package config loads runtime configuration for the gophvault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file (see parseFile) selected via flags: -c or -config.
//     Files ending in .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   data directory (master database, vault file, audit log)
//	-k int      PBKDF2 iteration count for newly enrolled master passwords
//	-m int      failed attempts before lockout
//	-l int      lockout cooldown (seconds)
//	-s int      session key lifetime (seconds)
//	-x int      clipboard clear delay (seconds)
//	-v string   log level: debug, info, warn, error
//
// # File schema
//
// Durations use timex.Duration, so values can be strings like "300s" or
// integer nanoseconds. Keys that are absent keep their previous value:
//
//	{
//	  "data_dir": "/home/alice/.gophvault",
//	  "kdf_iterations": 300000,
//	  "max_attempts": 5,
//	  "lockout_cooldown": "300s",
//	  "session_timeout": "10m",
//	  "clipboard_clear_after": "15s",
//	  "log_level": "info"
//	}
package config
