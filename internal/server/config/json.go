package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/rapidphotos/internal/flagx"
	"github.com/dmitrijs2005/rapidphotos/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept "30m" style
// strings or integer nanoseconds. Absent or zero fields keep the value
// already present in Config.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	S3UsePathStyle              *bool          `json:"s3_use_path_style"`
	PresignPutTTL               timex.Duration `json:"presign_put_ttl"`
	PresignGetTTL               timex.Duration `json:"presign_get_ttl"`
	MaxUsers                    int64          `json:"max_users"`
	MaxPhotos                   int64          `json:"max_photos"`
	MaxTotalBytes               int64          `json:"max_total_bytes"`
	MaxFileBytes                int64          `json:"max_file_bytes"`
	CORSAllowedOrigins          []string       `json:"cors_allowed_origins"`
	LogLevel                    string         `json:"log_level"`
	HealthCheckInterval         timex.Duration `json:"health_check_interval"`
}

// parseJson loads the file named by -c / -config, if any, onto config.
// An unreadable file or invalid JSON panics, as flag errors do.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)

	if c.S3UsePathStyle != nil {
		config.S3UsePathStyle = *c.S3UsePathStyle
	}
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.PresignPutTTL.Duration > 0 {
		config.PresignPutTTL = c.PresignPutTTL.Duration
	}
	if c.PresignGetTTL.Duration > 0 {
		config.PresignGetTTL = c.PresignGetTTL.Duration
	}
	if c.HealthCheckInterval.Duration > 0 {
		config.HealthCheckInterval = c.HealthCheckInterval.Duration
	}

	setInt(&config.MaxUsers, c.MaxUsers)
	setInt(&config.MaxPhotos, c.MaxPhotos)
	setInt(&config.MaxTotalBytes, c.MaxTotalBytes)
	setInt(&config.MaxFileBytes, c.MaxFileBytes)

	if len(c.CORSAllowedOrigins) > 0 {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int64, v int64) {
	if v > 0 {
		*dst = v
	}
}
