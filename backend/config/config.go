package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const (
	envWSListenAddr   = "RELAY_WS_LISTEN_ADDR"
	envAPIListenAddr  = "RELAY_API_LISTEN_ADDR"
	envLogLevel       = "RELAY_LOG_LEVEL"
	envSendQueueSize  = "RELAY_SEND_QUEUE_SIZE"
	envMaxMessageSize = "RELAY_MAX_MESSAGE_SIZE"

	defaultWSListenAddr   = ":8888"
	defaultAPIListenAddr  = ":8080"
	defaultLogLevel       = "debug"
	defaultSendQueueSize  = 64
	defaultMaxMessageSize = 64 * 1024
)

var (
	ErrEmptyAddr     = errors.New("listen address must not be empty")
	ErrQueueSize     = errors.New("send queue size must be positive")
	ErrMessageSize   = errors.New("max message size must be positive")
	ErrLogLevel      = errors.New("invalid log level")
	ErrParseArgs     = errors.New("failed to parse command line arguments")
	ErrLoadEnvFile   = errors.New("failed to load env file")
	ErrInvalidEnvVar = errors.New("invalid environment variable")
)

type Config struct {
	WSListenAddr   string
	APIListenAddr  string
	LogLevel       zerolog.Level
	SendQueueSize  int
	MaxMessageSize int64
}

// LoadEnvFile loads variables from env files into process environment.
// Missing files are ignored, already set variables are kept.
func LoadEnvFile(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Join(ErrLoadEnvFile, err)
		}
	}
	return nil
}

// Parse builds configuration from command line arguments
// using environment variables as defaults.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	queueDefault, err := envInt(getenv, envSendQueueSize, defaultSendQueueSize)
	if err != nil {
		return nil, err
	}
	msgSizeDefault, err := envInt(getenv, envMaxMessageSize, defaultMaxMessageSize)
	if err != nil {
		return nil, err
	}

	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)
	var (
		wsListenAddr = fs.StringP("ws-listen-addr", "w",
			envStr(getenv, envWSListenAddr, defaultWSListenAddr), "websocket signaling listen address")
		apiListenAddr = fs.StringP("api-listen-addr", "a",
			envStr(getenv, envAPIListenAddr, defaultAPIListenAddr), "api listen address")
		logLevel = fs.StringP("log-level", "l",
			envStr(getenv, envLogLevel, defaultLogLevel), "log level")
		sendQueueSize  = fs.Int("send-queue-size", queueDefault, "per connection outbound queue size")
		maxMessageSize = fs.Int64("max-message-size", int64(msgSizeDefault), "max inbound message size in bytes")
	)
	if err = fs.Parse(args); err != nil {
		return nil, errors.Join(ErrParseArgs, err)
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		return nil, errors.Join(ErrLogLevel, err)
	}

	cfg := &Config{
		WSListenAddr:   *wsListenAddr,
		APIListenAddr:  *apiListenAddr,
		LogLevel:       lvl,
		SendQueueSize:  *sendQueueSize,
		MaxMessageSize: *maxMessageSize,
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	var errs []error
	if cfg.WSListenAddr == "" || cfg.APIListenAddr == "" {
		errs = append(errs, ErrEmptyAddr)
	}
	if cfg.SendQueueSize <= 0 {
		errs = append(errs, ErrQueueSize)
	}
	if cfg.MaxMessageSize <= 0 {
		errs = append(errs, ErrMessageSize)
	}
	return errors.Join(errs...)
}

func envStr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Join(ErrInvalidEnvVar, errors.New(key), err)
	}
	return n, nil
}
