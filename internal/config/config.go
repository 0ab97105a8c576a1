// Package config loads per-service configuration from a YAML file,
// struct defaults, and environment variables; environment variables
// take precedence over both.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// ServiceType names the kind of service loading the configuration.
// Only api-server has a binary in services/; pipeline-worker has none.
type ServiceType string

const (
	ServiceTypeAPIServer      ServiceType = "api-server"
	ServiceTypePipelineWorker ServiceType = "pipeline-worker"
)

// AppConfig holds process-wide flags.
type AppConfig struct {
	Debug bool   `yaml:"debug" env:"APP_DEBUG" default:"false"`
	Name  string `yaml:"name" env:"APP_NAME" default:"moonshot-translate"`
}

// APIServerConfig configures the gin HTTP server.
type APIServerConfig struct {
	Mode    string        `yaml:"mode" env:"API_MODE" default:"release"`
	Host    string        `yaml:"host" env:"API_HOST" default:"0.0.0.0"`
	Port    int           `yaml:"port" env:"API_PORT" default:"8080"`
	Timeout time.Duration `yaml:"timeout" env:"API_TIMEOUT" default:"30s"`
}

// DatabaseConfig mirrors database.PostgreSQLConfig's field set so it
// can be copied across without a second source of truth for defaults.
type DatabaseConfig struct {
	Host            string        `yaml:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port            int           `yaml:"port" env:"POSTGRES_PORT" default:"5432"`
	Database        string        `yaml:"database" env:"POSTGRES_DB" default:"moonshot"`
	Username        string        `yaml:"username" env:"POSTGRES_USER" default:"postgres"`
	Password        string        `yaml:"password" env:"POSTGRES_PASSWORD" default:""`
	SSLMode         string        `yaml:"ssl_mode" env:"POSTGRES_SSLMODE" default:"disable"`
	Schema          string        `yaml:"schema" env:"POSTGRES_SCHEMA" default:"moonshot"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"POSTGRES_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"POSTGRES_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"POSTGRES_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"POSTGRES_CONN_MAX_IDLE_TIME" default:"5m"`
	BatchSize       int           `yaml:"batch_size" env:"POSTGRES_BATCH_SIZE" default:"100"`
}

// QueueConfig configures the Redis connection shared by the materials
// list cache and the web-capture cache.
type QueueConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" default:"0"`
}

// StorageConfig configures the MinIO object store.
type StorageConfig struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY_ID" default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_ACCESS_KEY" default:"minioadmin"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" default:"false"`
	BucketName      string `yaml:"bucket_name" env:"MINIO_BUCKET_NAME" default:"moonshot-translate"`
	Region          string `yaml:"region" env:"MINIO_REGION" default:"us-east-1"`
}

// ProviderEndpointConfig configures one external provider client.
type ProviderEndpointConfig struct {
	ServiceURL string        `yaml:"service_url" env:"SERVICE_URL" default:""`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT" default:"60s"`
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES" default:"3"`
}

// ProvidersConfig groups the five external collaborators spec §1
// treats as out-of-scope.
type ProvidersConfig struct {
	OCR        ProviderEndpointConfig `yaml:"ocr"`
	LLM        ProviderEndpointConfig `yaml:"llm"`
	Entity     ProviderEndpointConfig `yaml:"entity"`
	WebCapture ProviderEndpointConfig `yaml:"web_capture"`
	PDF        ProviderEndpointConfig `yaml:"pdf"`
}

// PipelineConfig configures the background worker pool and
// per-stage deadlines (spec §5).
type PipelineConfig struct {
	WorkerPoolSize     int           `yaml:"worker_pool_size" env:"PIPELINE_WORKERS" default:"8"`
	OCRTimeout         time.Duration `yaml:"ocr_timeout" default:"180s"`
	EntityTimeout      time.Duration `yaml:"entity_timeout" default:"120s"`
	LLMBatchTimeout    time.Duration `yaml:"llm_batch_timeout" default:"60s"`
	WebCaptureTimeout  time.Duration `yaml:"web_capture_timeout" default:"60s"`
	PDFRasterizeTimeout time.Duration `yaml:"pdf_rasterize_timeout" default:"45s"`
	LLMBatchSize       int           `yaml:"llm_batch_size" default:"30"`
	MaxImageBytes      int64         `yaml:"max_image_bytes" default:"4194304"`
	MaxImageDimension  int           `yaml:"max_image_dimension" default:"4096"`
	IngressMaxDimension int          `yaml:"ingress_max_dimension" default:"2800"`
	IngressMaxBytes    int64         `yaml:"ingress_max_bytes" default:"2097152"`
}

// Config is the root configuration object for every binary in
// services/. Each service loads the whole thing but only reads the
// sections it needs.
type Config struct {
	App       AppConfig       `yaml:"app"`
	APIServer APIServerConfig `yaml:"api_server"`
	Database  DatabaseConfig  `yaml:"database"`
	Queue     QueueConfig     `yaml:"queue"`
	Storage   StorageConfig   `yaml:"storage"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// LoadConfigForService loads configuration common to all services.
// YAML at path is read first if present (a missing file is not an
// error — defaults and env vars still apply), then creasty/defaults
// fills in anything left zero-valued, then environment variables
// override matching fields.
func LoadConfigForService(service ServiceType, path string) (*Config, error) {
	cfg := &Config{}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败 %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("应用默认配置失败: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量配置失败: %w", err)
	}

	_ = service // every service shares the same schema today; kept for future per-service trimming

	return cfg, nil
}
