// quicd is a standalone QUIC/HTTP-3 transport engine.
// Main entry point for the command-line application.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/penguintech/march-quicd/internal/config"
	"github.com/penguintech/march-quicd/internal/logging"
	"github.com/penguintech/march-quicd/internal/metrics"
	"github.com/penguintech/march-quicd/internal/tracing"
	"github.com/penguintech/march-quicd/pkg/quicd"
)

var (
	version   = "v0.1.0"
	buildTime = "unknown"
	gitHash   = "unknown"
)

const shutdownGrace = 5 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "quicd",
		Short: "quicd - standalone QUIC/HTTP-3 transport engine",
		Long: `quicd is a transport-engine core: a QUIC connection/stream state
machine, HTTP/3 (QPACK/HPACK field compression, frame codec) and HTTP/2
cleartext upgrade support, built directly on quic-go and instrumented with
Prometheus metrics and OpenTelemetry tracing.`,
		Version: fmt.Sprintf("%s (built: %s, commit: %s)", version, buildTime, gitHash),
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("enable-metrics", true, "Enable Prometheus metrics")
	rootCmd.PersistentFlags().Bool("enable-tracing", false, "Enable OpenTelemetry tracing")

	rootCmd.AddCommand(newServeCmd(), newClientCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("quicd %s (built: %s, commit: %s)\n", version, buildTime, gitHash)
		},
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the quicd server, accepting and echoing QUIC streams",
		Run:   runServer,
	}
	cmd.Flags().StringP("listen-addr", "p", ":4433", "QUIC listen address")
	cmd.Flags().StringP("admin-port", "a", "9090", "Admin/metrics port")
	return cmd
}

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client <addr>",
		Short: "Dial a quicd server and exchange one stream of stdin against it",
		Args:  cobra.ExactArgs(1),
		Run:   runClient,
	}
	cmd.Flags().Bool("insecure-skip-verify", true, "Skip TLS certificate verification for the dial")
	return cmd
}

// runServer builds a serve-side engine from configuration, accepts
// connections, and echoes every stream back to its sender until a signal or
// the engine itself fails (spec.md §4.3/§4.4's server-side accept loop).
func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting quicd server", "version", version, "listen_addr", cfg.GetListenAddress(), "admin_port", cfg.AdminPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingEngine := initTracing(cfg, logger)
	if tracingEngine != nil {
		defer tracingEngine.Shutdown(ctx)
	}

	tlsConfig, err := loadServerTLSConfig(cfg)
	if err != nil {
		logger.Error("failed to load TLS configuration", "error", err)
		os.Exit(1)
	}

	server, err := quicd.NewServer(cfg.GetListenAddress(), 128, tlsConfig, cfg.Transport, logger)
	if err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	metricsCollector := startMetrics(cfg, logger, ctx, server.Snapshot)

	go func() {
		if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
			logger.Error("server loop failed", "error", err)
			cancel()
		}
	}()

	go acceptLoop(ctx, server, logger, tracingEngine)

	waitForShutdown(ctx, cancel, logger)
	stopMetrics(metricsCollector, logger)
	logger.Info("quicd server stopped")
}

// runClient dials the address given as the command's sole argument, opens
// one bidirectional stream, writes a single read of stdin (up to 32 KiB)
// into it, and prints the reply from a single read (spec.md §4.3
// connect()/§4.2 stream.connect(), the
// client-side counterpart to runServer's accept loop).
func runClient(cmd *cobra.Command, args []string) {
	addr := args[0]

	cfg, err := config.Load(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	insecure, _ := cmd.Flags().GetBool("insecure-skip-verify")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := quicd.NewClient(cfg.Transport, logger)
	if err != nil {
		logger.Error("failed to build client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	go client.Run(ctx)

	dialCtx, dialCancel := context.WithTimeout(ctx, cfg.Transport.HandshakeTimeout)
	defer dialCancel()

	tlsConfig := &tls.Config{InsecureSkipVerify: insecure, NextProtos: []string{"h3", "h2"}}
	conn, err := client.Dial(dialCtx, addr, tlsConfig)
	if err != nil {
		logger.Error("dial failed", "error", err, "addr", addr)
		os.Exit(1)
	}
	defer conn.Close(0, "client done")

	stream, err := conn.OpenStream(ctx)
	if err != nil {
		logger.Error("open stream failed", "error", err)
		os.Exit(1)
	}

	logger.Info("connected", "addr", addr, "correlation_id", conn.CorrelationID())

	buf := make([]byte, 32*1024)
	n, err := os.Stdin.Read(buf)
	if err != nil && n == 0 {
		logger.Error("read stdin failed", "error", err)
		os.Exit(1)
	}
	if _, err := stream.WriteSome(ctx, buf[:n]); err != nil {
		logger.Error("write failed", "error", err)
		os.Exit(1)
	}

	reply := make([]byte, 32*1024)
	read, err := stream.ReadSome(ctx, reply)
	if err != nil {
		logger.Error("read reply failed", "error", err)
		os.Exit(1)
	}
	os.Stdout.Write(reply[:read])
}

// initTracing builds the tracing engine when configuration requests it,
// logging and continuing without tracing on failure rather than aborting.
func initTracing(cfg *config.Config, logger *logging.Logger) *tracing.TracingEngine {
	if !cfg.EnableTracing {
		return nil
	}
	tracingConfig := tracing.DefaultTracingConfig()
	tracingConfig.SamplingRate = cfg.TracingSample
	engine, err := tracing.NewTracingEngine(tracingConfig)
	if err != nil {
		logger.Error("failed to initialize tracing, continuing without it", "error", err)
		return nil
	}
	return engine
}

// startMetrics wires an EngineCollector sampling snap into a running
// Prometheus collector and metrics server, or returns nil when metrics are
// disabled.
func startMetrics(cfg *config.Config, logger *logging.Logger, ctx context.Context, snap func() (int, int)) *metrics.MetricsCollector {
	if !cfg.EnableMetrics {
		return nil
	}
	collector := metrics.NewMetricsCollector(metrics.DefaultMetricsConfig())
	collector.AddCollector(metrics.NewEngineCollector(collector.GetPrometheus(), snap))
	collector.Enable()
	collector.StartCollection(ctx)

	go func() {
		if err := collector.StartServer(cfg.GetAdminAddress()); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	return collector
}

func stopMetrics(collector *metrics.MetricsCollector, logger *logging.Logger) {
	if collector == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := collector.StopServer(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", "error", err)
	}
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, logger *logging.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}
	cancel()
}

// acceptLoop accepts incoming connections and hands each to a goroutine that
// drains its streams, the minimal echo-style handling the serve subcommand
// needs to exercise the engine end to end; embedders use pkg/quicd directly.
func acceptLoop(ctx context.Context, server *quicd.Server, logger *logging.Logger, tracingEngine *tracing.TracingEngine) {
	for {
		conn, err := server.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("accept failed", "error", err)
			continue
		}

		connLogger := logger.WithConnection(conn.CorrelationID(), conn.RemoteAddr().String())
		connLogger.Info("accepted connection")

		go serveConnection(ctx, conn, connLogger, tracingEngine)
	}
}

// serveConnection drains peer-initiated streams on conn, echoing each
// stream's bytes back to the sender until it is closed.
func serveConnection(ctx context.Context, conn *quicd.Connection, logger *logging.Logger, tracingEngine *tracing.TracingEngine) {
	var tracker *tracing.ConnectionTracker
	if tracingEngine != nil {
		tracker = tracingEngine.TrackConnection(ctx, conn.CorrelationUUID(), conn.RemoteAddr(), "quic")
	}

	var connErr error
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			connErr = err
			if ctx.Err() == nil {
				logger.Debug("connection ended", "error", err)
			}
			break
		}

		var streamTracker *tracing.StreamTracker
		if tracker != nil {
			streamTracker = tracker.TrackStream(stream.ID())
		}
		go echoStream(ctx, stream, logger, streamTracker)
	}

	if tracker != nil {
		outcome := "closed"
		if connErr != nil && ctx.Err() == nil {
			outcome = "error"
		}
		tracker.Finish(outcome, connErr)
	}
}

func echoStream(ctx context.Context, stream *quicd.Stream, logger *logging.Logger, tracker *tracing.StreamTracker) {
	buf := make([]byte, 32*1024)
	var bytesRead, bytesWritten int64
	var streamErr error
	for {
		n, err := stream.ReadSome(ctx, buf)
		if n > 0 {
			bytesRead += int64(n)
			written, werr := stream.WriteSome(ctx, buf[:n])
			bytesWritten += int64(written)
			if werr != nil {
				logger.Debug("stream write failed", "error", werr)
				streamErr = werr
				break
			}
		}
		if err != nil {
			streamErr = err
			break
		}
	}
	if tracker != nil {
		tracker.Finish(bytesWritten, bytesRead, streamErr)
	}
}

// loadServerTLSConfig builds the server TLS configuration from cfg, enabling
// client certificate verification when mTLS is required (spec.md §6
// "External QUIC state machine contract" assumes a *tls.Config is supplied
// externally; the ALPN set covers both the HTTP/3 and h2c-over-QUIC paths).
func loadServerTLSConfig(cfg *config.Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load TLS keypair: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h3", "h2"},
		MinVersion:   tls.VersionTLS13,
	}

	if cfg.EnableMTLS {
		pool, err := loadClientCAPool(cfg.MTLSClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("load client CA pool: %w", err)
		}
		tlsConfig.ClientCAs = pool
		if cfg.RequiresClientCert() {
			tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		} else {
			tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
		}
	}

	return tlsConfig, nil
}

// loadClientCAPool reads a PEM bundle of client CA certificates for mTLS
// verification.
func loadClientCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
