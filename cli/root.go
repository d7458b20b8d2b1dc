// Package cli provides the main command-line interface and HTTP server for the control-plane.
// This package orchestrates the complete application lifecycle including configuration management,
// service initialization, HTTP server setup, and graceful shutdown handling.
//
// Architecture Overview:
//
//	CLI → Configuration → Services → HTTP Server → API Routes
//	↓
//	RabbitMQ ← Broker-Event Publishing ← API Handlers → PostgreSQL Transaction Store
//
// The server is designed for containerized deployment with 12-factor app principles,
// supporting configuration via environment variables and external config files.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kgcp.evalgo.org/api"
	"kgcp.evalgo.org/common"
	"kgcp.evalgo.org/db"
	ctrlhttp "kgcp.evalgo.org/http"
	"kgcp.evalgo.org/queue"
	"kgcp.evalgo.org/security"
	"kgcp.evalgo.org/statemanager"
)

// cfgFile holds the path to the configuration file specified via command-line flag.
//
// Configuration File Search Order (when cfgFile is empty):
//  1. $HOME/.kgcpd.yaml
//  2. ./.kgcpd.yaml
var cfgFile string

// RootCmd defines the main CLI command for the control-plane.
//
// Command Structure:
//
//	kgcpd [flags]
//	  ├── --config: Configuration file path
//	  ├── --port: HTTP server port
//	  ├── --postgres-dsn: PostgreSQL connection string for the transaction store
//	  ├── --notify-channel: PostgreSQL NOTIFY channel for transaction events
//	  ├── --amqp-url: RabbitMQ connection URL (optional; broker publishing is
//	    disabled when empty)
//	  ├── --exchange: RabbitMQ topic exchange name
//	  └── --jwt-secret: JWT signing secret
var RootCmd = &cobra.Command{
	Use:   "kgcpd",
	Short: "control-plane server for temporal event stores, knowledge hooks, and workflow execution",
	Long: `Control Plane Service

A production-ready HTTP API server that fronts a knowledge-graph control
plane with:
- RESTful API endpoints for transaction introspection and event publishing
- JWT-based authentication and authorization
- RabbitMQ integration for reliable broker-event publishing
- PostgreSQL-backed durable transaction and hook-receipt storage
- In-memory operation tracking for in-flight work
- Graceful shutdown and health monitoring

Configuration can be provided via command-line flags, environment variables,
or YAML configuration files with automatic precedence handling.`,
	Run: runServer,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kgcpd.yaml)")

	RootCmd.PersistentFlags().String("port", "8080", "HTTP server port")
	RootCmd.PersistentFlags().String("postgres-dsn", "", "PostgreSQL connection string for the transaction store")
	RootCmd.PersistentFlags().String("notify-channel", "control_plane_transactions", "PostgreSQL NOTIFY channel for transaction events")
	RootCmd.PersistentFlags().String("amqp-url", "", "RabbitMQ connection URL (broker publishing disabled if empty)")
	RootCmd.PersistentFlags().String("exchange", "kgcp.events", "RabbitMQ topic exchange name")
	RootCmd.PersistentFlags().String("jwt-secret", "", "JWT signing secret")

	viper.BindPFlag("port", RootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("postgres.dsn", RootCmd.PersistentFlags().Lookup("postgres-dsn"))
	viper.BindPFlag("postgres.notify_channel", RootCmd.PersistentFlags().Lookup("notify-channel"))
	viper.BindPFlag("amqp.url", RootCmd.PersistentFlags().Lookup("amqp-url"))
	viper.BindPFlag("amqp.exchange", RootCmd.PersistentFlags().Lookup("exchange"))
	viper.BindPFlag("jwt.secret", RootCmd.PersistentFlags().Lookup("jwt-secret"))
}

// initConfig initializes the configuration system using Viper.
//
// Configuration File Discovery:
//  1. If --config flag is provided, use specified file
//  2. Otherwise, search for .kgcpd.yaml in $HOME and the working directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".kgcpd")
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// runServer initializes and starts the HTTP server with all required services.
//
// Startup Sequence:
//  1. Load configuration from all sources
//  2. Connect the PostgreSQL transaction store
//  3. Connect RabbitMQ for broker-event publishing, if configured
//  4. Initialize the JWT service and in-memory operation tracker
//  5. Set up the Echo HTTP server with middleware and routes
//  6. Start the HTTP server in a background goroutine
//  7. Wait for SIGINT/SIGTERM and shut down gracefully
func runServer(cmd *cobra.Command, args []string) {
	logger := common.ServiceLogger("kgcpd", "dev")

	dsn := viper.GetString("postgres.dsn")
	if dsn == "" {
		logger.Fatal("postgres.dsn is required (set --postgres-dsn or POSTGRES_DSN)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := pgxpool.New(ctx, dsn)
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to PostgreSQL")
	}
	defer pool.Close()

	txStore := db.NewTransactionStore(pool, viper.GetString("postgres.notify_channel"))

	var publisher queue.EventPublisher
	if amqpURL := viper.GetString("amqp.url"); amqpURL != "" {
		broker, err := queue.NewRabbitMQService(queue.BrokerConfig{
			RabbitMQURL: amqpURL,
			Exchange:    viper.GetString("amqp.exchange"),
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to initialize RabbitMQ broker")
		}
		defer broker.Close()
		publisher = broker
	} else {
		logger.Warn("amqp.url not configured, broker-event publishing is disabled")
	}

	jwtSecret := viper.GetString("jwt.secret")
	if jwtSecret == "" {
		logger.Fatal("jwt.secret is required (set --jwt-secret or JWT_SECRET)")
	}
	jwtService := security.NewJWTService(jwtSecret)

	operations := statemanager.New(statemanager.Config{ServiceName: "kgcpd"})

	e := ctrlhttp.NewEchoServer(ctrlhttp.DefaultServerConfig())
	e.HTTPErrorHandler = ctrlhttp.CustomHTTPErrorHandler
	e.Use(middleware.RequestID())
	e.GET("/health", ctrlhttp.HealthCheckHandler("kgcpd", "dev"))

	operations.RegisterRoutes(e.Group("/state"))

	handlers := &api.Handlers{
		Events:       publisher,
		Transactions: txStore,
		JWT:          jwtService,
	}
	api.SetupRoutes(e, handlers, jwtSecret)

	port := viper.GetString("port")
	go func() {
		logger.Infof("server starting on port %s", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	if err := ctrlhttp.GracefulShutdown(e, 10*time.Second); err != nil {
		logger.WithError(err).Fatal("graceful shutdown failed")
	}
}
