// Package config handles configuration management for march-quicd.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penguintech/march-quicd/internal/http2codec"
	"github.com/penguintech/march-quicd/internal/quicengine"
)

// Config holds all configuration for the march-quicd transport engine.
type Config struct {
	// Server identity
	Hostname   string `mapstructure:"hostname"`
	ListenAddr string `mapstructure:"listen_addr"`
	AdminPort  int    `mapstructure:"admin_port"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Performance settings
	EnableMetrics bool `mapstructure:"enable_metrics"`
	WorkerThreads int  `mapstructure:"worker_threads"`

	// TLS settings (required for the QUIC listener and the h2c ALPN check)
	TLSCertPath string `mapstructure:"tls_cert_path"`
	TLSKeyPath  string `mapstructure:"tls_key_path"`

	// mTLS settings
	EnableMTLS            bool   `mapstructure:"enable_mtls"`
	MTLSClientCAPath      string `mapstructure:"mtls_client_ca_path"`
	MTLSRequireClientCert bool   `mapstructure:"mtls_require_client_cert"`

	// Tracing
	EnableTracing bool    `mapstructure:"enable_tracing"`
	TracingSample float64 `mapstructure:"tracing_sample_rate"`

	// Transport settings (spec.md §3 "Transport settings")
	Transport quicengine.Settings `mapstructure:"transport"`

	// HTTP/2 setting_values (spec.md §3), used for the h2c Upgrade handshake
	HTTP2 http2codec.SettingValues `mapstructure:"http2"`
}

// NewConfig creates a new configuration with default values.
func NewConfig() *Config {
	return &Config{
		Hostname:      getHostname(),
		ListenAddr:    ":4433",
		AdminPort:     9090,
		LogLevel:      "info",
		EnableMetrics: true,
		EnableTracing: false,
		TracingSample: 0.1,
		Transport:     quicengine.DefaultSettings(),
		HTTP2:         http2codec.DefaultSettingValues(),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		return fmt.Errorf("invalid admin port: %d (must be 1-65535)", c.AdminPort)
	}
	if c.EnableMTLS && c.MTLSClientCAPath == "" && c.MTLSRequireClientCert {
		return fmt.Errorf("mtls_client_ca_path is required when client certificates are required")
	}
	if c.Transport.MaxStreamsPerConnection <= 0 {
		return fmt.Errorf("transport.max_streams_per_connection must be positive")
	}
	return nil
}

// GetHostname returns the configured hostname or the system hostname.
func (c *Config) GetHostname() string {
	if c.Hostname != "" {
		return c.Hostname
	}
	return getHostname()
}

// Load creates a new configuration from command line flags, environment
// variables, and an optional config file.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := bindFlags(v, cmd); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	v.SetEnvPrefix("QUICD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hostname", getHostname())
	v.SetDefault("listen_addr", ":4433")
	v.SetDefault("admin_port", 9090)

	v.SetDefault("log_level", "info")

	v.SetDefault("enable_metrics", true)
	v.SetDefault("worker_threads", 0) // 0 = resolved by GetWorkerThreads

	v.SetDefault("tls_cert_path", "/app/certs/cert.pem")
	v.SetDefault("tls_key_path", "/app/certs/key.pem")

	v.SetDefault("enable_mtls", getBoolEnv("MTLS_ENABLED", false))
	v.SetDefault("mtls_client_ca_path", os.Getenv("MTLS_CLIENT_CA_PATH"))
	v.SetDefault("mtls_require_client_cert", getBoolEnv("MTLS_REQUIRE_CLIENT_CERT", false))

	v.SetDefault("enable_tracing", getBoolEnv("TRACING_ENABLED", false))
	v.SetDefault("tracing_sample_rate", 0.1)

	defaultTransport := quicengine.DefaultSettings()
	v.SetDefault("transport.handshake_timeout", defaultTransport.HandshakeTimeout)
	v.SetDefault("transport.idle_timeout", defaultTransport.IdleTimeout)
	v.SetDefault("transport.max_streams_per_connection", defaultTransport.MaxStreamsPerConnection)
	v.SetDefault("transport.connection_flow_control_window", defaultTransport.ConnectionFlowControlWindow)
	v.SetDefault("transport.incoming_stream_flow_control_window", defaultTransport.IncomingStreamFlowControlWindow)
	v.SetDefault("transport.outgoing_stream_flow_control_window", defaultTransport.OutgoingStreamFlowControlWindow)

	defaultHTTP2 := http2codec.DefaultSettingValues()
	v.SetDefault("http2.header_table_size", defaultHTTP2.HeaderTableSize)
	v.SetDefault("http2.enable_push", defaultHTTP2.EnablePush)
	v.SetDefault("http2.max_concurrent_streams", defaultHTTP2.MaxConcurrentStreams)
	v.SetDefault("http2.initial_window_size", defaultHTTP2.InitialWindowSize)
	v.SetDefault("http2.max_frame_size", defaultHTTP2.MaxFrameSize)
	v.SetDefault("http2.max_header_list_size", defaultHTTP2.MaxHeaderListSize)
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	flagBindings := map[string]string{
		"listen-addr":    "listen_addr",
		"admin-port":     "admin_port",
		"log-level":      "log_level",
		"enable-metrics": "enable_metrics",
		"enable-tracing": "enable_tracing",
	}

	for flag, configKey := range flagBindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(configKey, f); err != nil {
				return err
			}
		}
	}

	return nil
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// GetListenAddress returns the transport listen address.
func (c *Config) GetListenAddress() string {
	return c.ListenAddr
}

// GetAdminAddress returns the full admin/metrics address.
func (c *Config) GetAdminAddress() string {
	return fmt.Sprintf(":%d", c.AdminPort)
}

// IsMTLSEnabled returns true if mTLS is enabled and properly configured.
func (c *Config) IsMTLSEnabled() bool {
	return c.EnableMTLS && c.TLSCertPath != "" && c.TLSKeyPath != ""
}

// RequiresClientCert returns true if client certificates are required.
func (c *Config) RequiresClientCert() bool {
	return c.EnableMTLS && c.MTLSRequireClientCert
}

// GetWorkerThreads returns WorkerThreads when it is positive; otherwise (0,
// the default) it returns the GOMAXPROCS environment variable if that holds
// a positive integer, and 4 if not.
func (c *Config) GetWorkerThreads() int {
	if c.WorkerThreads > 0 {
		return c.WorkerThreads
	}
	if gomaxprocs := os.Getenv("GOMAXPROCS"); gomaxprocs != "" {
		if threads, err := strconv.Atoi(gomaxprocs); err == nil && threads > 0 {
			return threads
		}
	}
	return 4
}

// IsTLSEnabled returns true if TLS certificate paths are configured.
func (c *Config) IsTLSEnabled() bool {
	return c.TLSCertPath != "" && c.TLSKeyPath != ""
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}
