package filesniff

import (
	"fmt"
	"strings"
	"time"

	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Store driver to read from (local, memory, zip, s3, gcs, azure, sftp)
	Driver string `env:"FILESNIFF_DRIVER,default:local"`

	// Local driver configuration
	LocalBasePath string `env:"FILESNIFF_LOCAL_BASE_PATH,default:."`

	// Zip driver configuration
	ZipArchivePath string `env:"FILESNIFF_ZIP_ARCHIVE_PATH"`

	// S3 driver configuration
	S3Region          string `env:"FILESNIFF_S3_REGION,default:us-east-1"`
	S3Bucket          string `env:"FILESNIFF_S3_BUCKET"`
	S3Prefix          string `env:"FILESNIFF_S3_PREFIX"`
	S3Endpoint        string `env:"FILESNIFF_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"FILESNIFF_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"FILESNIFF_S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"FILESNIFF_S3_FORCE_PATH_STYLE,default:false"`

	// GCS (Google Cloud Storage) driver configuration
	GCSBucket          string `env:"FILESNIFF_GCS_BUCKET"`
	GCSPrefix          string `env:"FILESNIFF_GCS_PREFIX"`
	GCSCredentialsFile string `env:"FILESNIFF_GCS_CREDENTIALS_FILE"` // Path to service account JSON

	// Azure Blob Storage driver configuration
	AzureAccountName   string `env:"FILESNIFF_AZURE_ACCOUNT_NAME"`
	AzureAccountKey    string `env:"FILESNIFF_AZURE_ACCOUNT_KEY"`
	AzureContainerName string `env:"FILESNIFF_AZURE_CONTAINER_NAME"`
	AzurePrefix        string `env:"FILESNIFF_AZURE_PREFIX"`
	AzureEndpoint      string `env:"FILESNIFF_AZURE_ENDPOINT"` // Optional custom endpoint

	// SFTP driver configuration
	SFTPHost       string `env:"FILESNIFF_SFTP_HOST"`
	SFTPPort       int    `env:"FILESNIFF_SFTP_PORT,default:22"`
	SFTPUsername   string `env:"FILESNIFF_SFTP_USERNAME"`
	SFTPPassword   string `env:"FILESNIFF_SFTP_PASSWORD"`
	SFTPPrivateKey string `env:"FILESNIFF_SFTP_PRIVATE_KEY"` // Path to private key file
	SFTPBasePath   string `env:"FILESNIFF_SFTP_BASE_PATH"`

	// Classification
	ZipMIME     string `env:"FILESNIFF_ZIP_MIME,default:application/zip"`
	RulesFile   string `env:"FILESNIFF_RULES_FILE"` // YAML or TOML custom rules
	NestedLimit int64  `env:"FILESNIFF_NESTED_LIMIT,default:16777216"`

	// Result cache
	CacheEnabled bool   `env:"FILESNIFF_CACHE_ENABLED,default:true"`
	CacheTTL     string `env:"FILESNIFF_CACHE_TTL,default:5m"` // time.ParseDuration syntax
	CacheEntries int    `env:"FILESNIFF_CACHE_ENTRIES,default:10000"`

	// Batch classification
	Concurrency int `env:"FILESNIFF_CONCURRENCY,default:8"`

	// Watch polling interval for stores without change notifications
	// (s3, gcs, azure, sftp)
	PollInterval string `env:"FILESNIFF_POLL_INTERVAL,default:30s"`

	// Policy
	MaxFileSize       int64  `env:"FILESNIFF_MAX_FILE_SIZE,default:0"` // 0 disables the size check
	AllowedMimeTypes  string `env:"FILESNIFF_ALLOWED_MIME_TYPES"`      // comma-separated, image/* groups allowed
	BlockedMimeTypes  string `env:"FILESNIFF_BLOCKED_MIME_TYPES"`      // comma-separated
	AllowedExtensions string `env:"FILESNIFF_ALLOWED_EXTENSIONS"`      // comma-separated
	BlockedExtensions string `env:"FILESNIFF_BLOCKED_EXTENSIONS"`      // comma-separated
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList splits a comma-separated config value, dropping empty items.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cacheTTL parses CacheTTL. An empty value means no expiry.
func (c *Config) cacheTTL() (time.Duration, error) {
	if c.CacheTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache TTL %q: %w", c.CacheTTL, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid cache TTL %q: negative duration", c.CacheTTL)
	}
	return d, nil
}

// WatchInterval returns the parsed PollInterval, or fallback when it is
// empty or invalid.
func (c *Config) WatchInterval(fallback time.Duration) time.Duration {
	if c.PollInterval == "" {
		return fallback
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
