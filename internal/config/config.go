// Package config loads dockenergy settings from dockenergy.cfg.json via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "dockenergy.cfg.json"

// KernelConfig holds energy kernel settings
type KernelConfig struct {
	Cutoff      float64 `json:"cutoff" mapstructure:"cutoff"`
	ElecScaling float64 `json:"elecScaling" mapstructure:"elecScaling"`
	Accelerated bool    `json:"accelerated" mapstructure:"accelerated"`
	// Workers is the goroutine count of the accelerated kernel; 0 means GOMAXPROCS.
	Workers int `json:"workers" mapstructure:"workers"`
}

// WorkerConfig holds background worker settings
type WorkerConfig struct {
	IdleTimeout time.Duration `json:"idleTimeout" mapstructure:"idleTimeout"`
}

// FeedbackConfig holds readout scaling and audio tempo settings
type FeedbackConfig struct {
	Window    int     `json:"window" mapstructure:"window"`
	MinEnergy float64 `json:"minEnergy" mapstructure:"minEnergy"`
	MaxEnergy float64 `json:"maxEnergy" mapstructure:"maxEnergy"`
	ElecScale float64 `json:"elecScale" mapstructure:"elecScale"`
	VdwScale  float64 `json:"vdwScale" mapstructure:"vdwScale"`
	// Buffer is the queue between the energy signal and the tempo mapper.
	// 0 delivers synchronously.
	Buffer int `json:"buffer" mapstructure:"buffer"`
}

// RecorderConfig holds energy trace recording settings
type RecorderConfig struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
}

// MonitorConfig holds status monitor settings
type MonitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	// Path is the dump target; empty keeps the database in memory only.
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds PostgreSQL connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB export settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// ServerURL returns protocol://host:port.
func (c InfluxConfig) ServerURL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// OTelConfig holds OpenTelemetry log and metric export settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`

	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`

	// MetricsInterval is the export period of the dispatcher and worker metrics.
	MetricsInterval time.Duration `json:"metricsInterval" mapstructure:"metricsInterval"`
}

// SetDefaults registers every default value. Load calls it; hosts running
// without a config file call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./docklogs")

	viper.SetDefault("kernel.cutoff", 999.0)
	viper.SetDefault("kernel.elecScaling", 332.0522)
	viper.SetDefault("kernel.accelerated", true)
	viper.SetDefault("kernel.workers", 0)

	viper.SetDefault("worker.idleTimeout", "250ms")

	viper.SetDefault("feedback.window", 10)
	viper.SetDefault("feedback.minEnergy", -999.0)
	viper.SetDefault("feedback.maxEnergy", 999.0)
	viper.SetDefault("feedback.elecScale", 1.0)
	viper.SetDefault("feedback.vdwScale", 1.0)
	viper.SetDefault("feedback.buffer", 64)

	viper.SetDefault("recorder.enabled", true)
	viper.SetDefault("recorder.flushInterval", "1s")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./energy")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "dockenergy")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "dockenergy")
	viper.SetDefault("influx.bucket", "docking")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "dockenergy")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricsInterval", "10s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetKernelConfig returns the energy kernel settings.
func GetKernelConfig() KernelConfig {
	return KernelConfig{
		Cutoff:      viper.GetFloat64("kernel.cutoff"),
		ElecScaling: viper.GetFloat64("kernel.elecScaling"),
		Accelerated: viper.GetBool("kernel.accelerated"),
		Workers:     viper.GetInt("kernel.workers"),
	}
}

// GetWorkerConfig returns the background worker settings.
func GetWorkerConfig() WorkerConfig {
	return WorkerConfig{
		IdleTimeout: viper.GetDuration("worker.idleTimeout"),
	}
}

// GetFeedbackConfig returns the readout and audio tempo settings.
func GetFeedbackConfig() FeedbackConfig {
	return FeedbackConfig{
		Window:    viper.GetInt("feedback.window"),
		MinEnergy: viper.GetFloat64("feedback.minEnergy"),
		MaxEnergy: viper.GetFloat64("feedback.maxEnergy"),
		ElecScale: viper.GetFloat64("feedback.elecScale"),
		VdwScale:  viper.GetFloat64("feedback.vdwScale"),
		Buffer:    viper.GetInt("feedback.buffer"),
	}
}

// GetRecorderConfig returns the energy trace recording settings.
func GetRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Enabled:       viper.GetBool("recorder.enabled"),
		FlushInterval: viper.GetDuration("recorder.flushInterval"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		Interval: viper.GetDuration("monitor.interval"),
	}
}

// GetGraylogConfig returns the GELF log shipping settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetDBConfig returns the PostgreSQL connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB export settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:         viper.GetBool("otel.enabled"),
		ServiceName:     viper.GetString("otel.serviceName"),
		BatchTimeout:    viper.GetDuration("otel.batchTimeout"),
		MetricsInterval: viper.GetDuration("otel.metricsInterval"),
		Endpoint:        viper.GetString("otel.endpoint"),
		Insecure:        viper.GetBool("otel.insecure"),
	}
}
