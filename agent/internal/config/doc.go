// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent}: the `agent:` section parsed from YAML
//   - AgentConfig: scrape_interval, buffer_size, metrics_addr, env_file,
//     sources [], sinks
//   - Source: id, type (html|prometheus), endpoint, selector, metric,
//     log_path, user_agent, auth, tls, breaker
//   - AuthConfig: mode (apikey|bearer|basic|none); Key(), Token() and
//     Password() resolve secrets from environment variables
//   - SinksConfig: postgres, mongo and redis targets, each disabled by default
//
// Load(path) reads the YAML file, applies defaults (10m scrape, 1000 buffer,
// :9310 metrics, per-source selector, log path and breaker), validates it,
// then loads env_file through godotenv.
//
// Watch(ctx, path, onChange) uses fsnotify on the parent directory and calls
// onChange with each successfully reloaded Config.
package config
