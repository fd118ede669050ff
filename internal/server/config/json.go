package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophdrive/internal/flagx"
	"github.com/dmitrijs2005/gophdrive/internal/timex"
)

// JsonConfig is the DTO read from the JSON config file. Durations use
// timex.Duration so "2h" style strings work; sizes accept "4MiB". Absent
// fields keep the value from the previous layer.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`
	LogLevel         string `json:"log_level"`

	UploadToken           string          `json:"upload_token"`
	SessionMaxAge         *timex.Duration `json:"session_max_age"`
	GrantValidityDuration *timex.Duration `json:"grant_validity_duration"`

	Backend     string `json:"backend"`
	StoragePath string `json:"storage_path"`
	CachePath   string `json:"cache_path"`

	OneDriveClientID     string `json:"onedrive_client_id"`
	OneDriveClientSecret string `json:"onedrive_client_secret"`
	OneDriveTenantID     string `json:"onedrive_tenant_id"`
	OneDriveUserEmail    string `json:"onedrive_user_email"`
	OneDriveDownloadHost string `json:"onedrive_download_host"`

	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	DirectUploadLimit      string `json:"direct_upload_limit"`
	SniffBase64            *bool  `json:"sniff_base64"`
	DefaultChunkMultiplier *int   `json:"default_chunk_multiplier"`
	FolderCacheSize        *int   `json:"folder_cache_size"`
}

// parseJson overlays the file named by -c/-config, if any. An unreadable or
// invalid file is fatal, so it panics like the flag layer does.
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

	if err := c.apply(config); err != nil {
		panic(err)
	}
}

func (c *JsonConfig) apply(config *Config) error {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.UploadToken, c.UploadToken)
	setString(&config.Backend, c.Backend)
	setString(&config.StoragePath, c.StoragePath)
	setString(&config.CachePath, c.CachePath)
	setString(&config.OneDriveClientID, c.OneDriveClientID)
	setString(&config.OneDriveClientSecret, c.OneDriveClientSecret)
	setString(&config.OneDriveTenantID, c.OneDriveTenantID)
	setString(&config.OneDriveUserEmail, c.OneDriveUserEmail)
	setString(&config.OneDriveDownloadHost, c.OneDriveDownloadHost)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.SessionMaxAge != nil {
		config.SessionMaxAge = c.SessionMaxAge.Duration
	}
	if c.GrantValidityDuration != nil {
		config.GrantValidityDuration = c.GrantValidityDuration.Duration
	}
	if c.DirectUploadLimit != "" {
		n, err := flagx.ParseByteSize(c.DirectUploadLimit)
		if err != nil {
			return err
		}
		config.DirectUploadLimit = n
	}
	if c.SniffBase64 != nil {
		config.SniffBase64 = *c.SniffBase64
	}
	if c.DefaultChunkMultiplier != nil {
		config.DefaultChunkMultiplier = *c.DefaultChunkMultiplier
	}
	if c.FolderCacheSize != nil {
		config.FolderCacheSize = *c.FolderCacheSize
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
