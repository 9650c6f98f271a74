package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the telemetry section of bootcoord.yaml.
type Config struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Events  EventsConfig  `yaml:"events"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" validate:"oneof=console json"`

	// Output is stdout, stderr, or a file path opened for append.
	Output string `yaml:"output"`

	EnableCaller bool `yaml:"enable_caller"`

	// TimeFormat is unix, unixms, or rfc3339.
	TimeFormat string `yaml:"time_format" validate:"omitempty,oneof=unix unixms rfc3339"`
}

// TracingConfig configures lifecycle spans.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is otlp, stdout, or none. With none, spans are sampled but
	// never shipped.
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `yaml:"endpoint"`

	SamplingRate  float64       `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	ExportTimeout time.Duration `yaml:"export_timeout"`
	Insecure      bool          `yaml:"insecure"`
}

// MetricsConfig configures the Prometheus registry and its HTTP endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address" validate:"required_if=Enabled true"`
	Path          string `yaml:"path"`
	Namespace     string `yaml:"namespace"`
}

// EventsConfig configures the lifecycle event publisher.
type EventsConfig struct {
	Enabled bool `yaml:"enabled"`

	// BufferSize bounds the queue used when EnableAsync is set.
	BufferSize  int  `yaml:"buffer_size" validate:"required_if=EnableAsync true,gte=0"`
	EnableAsync bool `yaml:"enable_async"`
}

// DefaultConfig returns console logging at info, tracing off, metrics on :9090,
// and synchronous events.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "bootcoord",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Tracing: TracingConfig{
			Exporter:      "none",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
			Insecure:      true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "bootcoord",
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
		},
	}
}

var configValidator = validator.New()

// Validate checks the struct tags and reports every failing field.
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("telemetry config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid telemetry config: %s", strings.Join(msgs, "; "))
}
