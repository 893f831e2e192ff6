// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary). The
// report tool reads the same section to find source logs and goals.
//
// Config fields:
//   - HTTPPort            : port for the API, charts, status page and WebSocket hub (default 8080)
//   - EnvFile             : optional dotenv file loaded after validation
//   - Auth.Mode           : "apikey" or "none"
//   - Auth.KeyEnv         : environment variable holding the expected API key
//   - Auth.Header         : HTTP header name (default "x-api-key")
//   - Snapshot.TTL        : how long a source snapshot remains live (default 1h)
//   - Receiver.Resync     : periodic re-analysis of every log (default 5m)
//   - Receiver.StaleAfter : newest-sample age that counts as stale (default 1h)
//   - Sources             : id, name, log_path, page_url and goal per tracked page
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
