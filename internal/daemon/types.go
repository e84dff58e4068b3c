package daemon

// DefaultPort is the HTTP port when neither the config nor the flags name an address.
const DefaultPort = 8000

// StartOptions configures the daemon.
type StartOptions struct {
	Home       string
	ConfigPath string // default home/config.yaml
	Port       int
	Addr       string // overrides Port and server.addr when set
	Agent      string // single-agent mode; empty starts every enabled agent
	Dev        bool
	PprofAddr  string
	EnableOtel bool // Prometheus exporter on /metrics plus otelhttp instrumentation
	Version    string
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
