package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	Export   ExportConfig   `yaml:"export"`
	Queue    QueueConfig    `yaml:"queue"`
	LogLevel string         `yaml:"log_level"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string `yaml:"grpc_addr"`
	HTTPAddr       string `yaml:"http_addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine          string `yaml:"engine"` // "tesseract" | "documentai"
	Tesseract       string `yaml:"tesseract"`
	Pdftoppm        string `yaml:"pdftoppm"`
	TessdataDir     string `yaml:"tessdata_dir"`
	Lang            string `yaml:"lang"`
	DPI             int    `yaml:"dpi"`
	MaxPages        int    `yaml:"max_pages"`
	PSM             int    `yaml:"psm"`
	PreferTextLayer bool   `yaml:"prefer_text_layer"`
	FoldWidth       bool   `yaml:"fold_width"`

	DocAIProjectID   string `yaml:"docai_project_id"`
	DocAILocation    string `yaml:"docai_location"`
	DocAIProcessorID string `yaml:"docai_processor_id"`
}

// ExportConfig holds spreadsheet export configuration
type ExportConfig struct {
	SheetName string `yaml:"sheet_name"`
	OutDir    string `yaml:"out_dir"`
}

// QueueConfig holds background processing configuration
type QueueConfig struct {
	Workers        int           `yaml:"workers"`
	Size           int           `yaml:"size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	WatchDir       string        `yaml:"watch_dir"`
	WatchDebounce  time.Duration `yaml:"watch_debounce"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr:       ":8080",
			HTTPAddr:       ":8090",
			MaxUploadBytes: 50 << 20,
		},
		OCR: OCRConfig{
			Engine:        "tesseract",
			Lang:          "eng",
			DPI:           216, // 3x zoom of a 72 dpi page
			FoldWidth:     true,
			DocAILocation: "us",
		},
		Export: ExportConfig{
			SheetName: "検査データ",
		},
		Queue: QueueConfig{
			Workers:        2,
			Size:           64,
			ProcessTimeout: 10 * time.Minute,
			WatchDebounce:  2 * time.Second,
		},
		LogLevel: "info",
	}
}

// LoadConfig loads defaults, then CONFIG_FILE (YAML) if set, then environment variables
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", "read config file", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes)

	c.OCR.Engine = getEnv("OCR_ENGINE", c.OCR.Engine)
	c.OCR.Tesseract = getEnv("TESSERACT_PATH", c.OCR.Tesseract)
	c.OCR.Pdftoppm = getEnv("PDFTOPPM_PATH", c.OCR.Pdftoppm)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.Lang = getEnv("OCR_LANG", c.OCR.Lang)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", c.OCR.MaxPages)
	c.OCR.PSM = getEnvAsInt("OCR_PSM", c.OCR.PSM)
	c.OCR.PreferTextLayer = getEnvAsBool("OCR_PREFER_TEXT_LAYER", c.OCR.PreferTextLayer)
	c.OCR.FoldWidth = getEnvAsBool("OCR_FOLD_WIDTH", c.OCR.FoldWidth)
	c.OCR.DocAIProjectID = getEnv("DOCAI_PROJECT_ID", c.OCR.DocAIProjectID)
	c.OCR.DocAILocation = getEnv("DOCAI_LOCATION", c.OCR.DocAILocation)
	c.OCR.DocAIProcessorID = getEnv("DOCAI_PROCESSOR_ID", c.OCR.DocAIProcessorID)

	c.Export.SheetName = getEnv("EXPORT_SHEET_NAME", c.Export.SheetName)
	c.Export.OutDir = getEnv("EXPORT_OUT_DIR", c.Export.OutDir)

	c.Queue.Workers = getEnvAsInt("WORKERS", c.Queue.Workers)
	c.Queue.Size = getEnvAsInt("QUEUE_SIZE", c.Queue.Size)
	c.Queue.ProcessTimeout = getEnvAsDuration("PROCESS_TIMEOUT", c.Queue.ProcessTimeout)
	c.Queue.WatchDir = getEnv("WATCH_DIR", c.Queue.WatchDir)
	c.Queue.WatchDebounce = getEnvAsDuration("WATCH_DEBOUNCE", c.Queue.WatchDebounce)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.OCR.Engine {
	case "tesseract":
	case "documentai":
		if c.OCR.DocAIProjectID == "" || c.OCR.DocAIProcessorID == "" {
			return NewAppError("CONFIG_ERROR", "DOCAI_PROJECT_ID and DOCAI_PROCESSOR_ID are required for the documentai engine", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown OCR_ENGINE %q", c.OCR.Engine), ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_DPI must be positive", ErrInvalidInput)
	}
	if strings.TrimSpace(c.Export.SheetName) == "" {
		return NewAppError("CONFIG_ERROR", "EXPORT_SHEET_NAME is required", ErrInvalidInput)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
