package config

import (
	"strings"

	"github.com/dmitrijs2005/gophdrive/internal/flagx"
	"github.com/spf13/viper"
)

// Environment variable names.
const (
	envHTTPAddr             = "HTTP_ADDR"
	envGRPCAddr             = "GRPC_ADDR"
	envDatabaseURL          = "DATABASE_URL"
	envLogLevel             = "LOG_LEVEL"
	envUploadToken          = "UPLOAD_TOKEN"
	envSessionMaxAge        = "SESSION_MAX_AGE"
	envBackend              = "STORAGE_BACKEND"
	envStoragePath          = "ONEDRIVE_STORAGE_PATH"
	envOneDriveClientID     = "ONEDRIVE_CLIENT_ID"
	envOneDriveClientSecret = "ONEDRIVE_CLIENT_SECRET"
	envOneDriveTenantID     = "ONEDRIVE_TENANT_ID"
	envOneDriveUserEmail    = "ONEDRIVE_USER_EMAIL"
	envOneDriveDownloadHost = "ONEDRIVE_DOWNLOAD_HOST"
	envS3AccessKey          = "S3_ACCESS_KEY"
	envS3SecretKey          = "S3_SECRET_KEY"
	envS3Bucket             = "S3_BUCKET"
	envS3Region             = "S3_REGION"
	envS3Endpoint           = "S3_ENDPOINT"
	envDirectUploadLimit    = "DIRECT_UPLOAD_LIMIT"
	envSniffBase64          = "SNIFF_BASE64"
)

// parseEnv overlays values from the process environment. Empty or
// whitespace-only variables are ignored.
func parseEnv(config *Config) {
	v := viper.New()

	str := func(key string, dst *string) {
		_ = v.BindEnv(key)
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			*dst = s
		}
	}

	str(envHTTPAddr, &config.EndpointAddrHTTP)
	str(envGRPCAddr, &config.EndpointAddrGRPC)
	str(envDatabaseURL, &config.DatabaseDSN)
	str(envLogLevel, &config.LogLevel)
	str(envUploadToken, &config.UploadToken)
	str(envBackend, &config.Backend)
	str(envStoragePath, &config.StoragePath)
	str(envOneDriveClientID, &config.OneDriveClientID)
	str(envOneDriveClientSecret, &config.OneDriveClientSecret)
	str(envOneDriveTenantID, &config.OneDriveTenantID)
	str(envOneDriveUserEmail, &config.OneDriveUserEmail)
	str(envOneDriveDownloadHost, &config.OneDriveDownloadHost)
	str(envS3AccessKey, &config.S3AccessKey)
	str(envS3SecretKey, &config.S3SecretKey)
	str(envS3Bucket, &config.S3Bucket)
	str(envS3Region, &config.S3Region)
	str(envS3Endpoint, &config.S3BaseEndpoint)

	_ = v.BindEnv(envSessionMaxAge)
	if v.IsSet(envSessionMaxAge) {
		if d := v.GetDuration(envSessionMaxAge); d > 0 {
			config.SessionMaxAge = d
		}
	}

	_ = v.BindEnv(envSniffBase64)
	if v.IsSet(envSniffBase64) {
		config.SniffBase64 = v.GetBool(envSniffBase64)
	}

	var limit string
	str(envDirectUploadLimit, &limit)
	if limit != "" {
		if n, err := flagx.ParseByteSize(limit); err == nil {
			config.DirectUploadLimit = n
		}
	}
}
