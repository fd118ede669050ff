package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"gophdrive"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, 2*time.Hour, c.SessionMaxAge)
	assert.Equal(t, int64(4<<20), c.DirectUploadLimit)
	assert.True(t, c.SniffBase64)
	assert.Equal(t, 10, c.DefaultChunkMultiplier)
	assert.Equal(t, BackendOneDrive, c.Backend)
	assert.Empty(t, c.UploadToken)
	assert.Equal(t, "gophdrive/cache", c.CacheBasePath())
}

func TestLoadConfig_NoSourcesKeepsDefaults(t *testing.T) {
	withArgs(t)
	for _, k := range []string{envUploadToken, envHTTPAddr, envSniffBase64, envDirectUploadLimit} {
		t.Setenv(k, "")
	}

	got := LoadConfig()
	want := defaults()
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_http":  ":7000",
		"upload_token":        "from-json",
		"storage_path":        "json-path",
		"session_max_age":     "30m",
		"direct_upload_limit": "1MiB",
		"sniff_base64":        false,
	})
	withArgs(t, "-c", path, "-a", ":9000")
	t.Setenv(envUploadToken, "from-env")
	t.Setenv(envHTTPAddr, ":8000")

	c := LoadConfig()

	assert.Equal(t, ":9000", c.EndpointAddrHTTP, "flag beats env and json")
	assert.Equal(t, "from-env", c.UploadToken, "env beats json")
	assert.Equal(t, "json-path", c.StoragePath)
	assert.Equal(t, 30*time.Minute, c.SessionMaxAge)
	assert.Equal(t, int64(1<<20), c.DirectUploadLimit)
	assert.False(t, c.SniffBase64)
}

func TestParseJson_PartialFileKeepsOtherValues(t *testing.T) {
	path := writeTempJSON(t, map[string]any{"s3_bucket": "media"})
	withArgs(t, "-config", path)

	c := defaults()
	parseJson(&c)

	want := defaults()
	want.S3Bucket = "media"
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJson_InvalidInputPanics(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))

	withArgs(t, "-c", bad)
	c := defaults()
	assert.Panics(t, func() { parseJson(&c) })

	withArgs(t, "-c", filepath.Join(dir, "missing.json"))
	assert.Panics(t, func() { parseJson(&c) })

	badSize := writeTempJSON(t, map[string]any{"direct_upload_limit": "huge"})
	withArgs(t, "-c", badSize)
	assert.Panics(t, func() { parseJson(&c) })
}

func TestParseEnv(t *testing.T) {
	t.Setenv(envOneDriveClientID, "  cid  ")
	t.Setenv(envOneDriveTenantID, "")
	t.Setenv(envSessionMaxAge, "45m")
	t.Setenv(envSniffBase64, "false")
	t.Setenv(envDirectUploadLimit, "8MiB")
	t.Setenv(envBackend, "s3")

	c := defaults()
	parseEnv(&c)

	assert.Equal(t, "cid", c.OneDriveClientID)
	assert.Empty(t, c.OneDriveTenantID)
	assert.Equal(t, 45*time.Minute, c.SessionMaxAge)
	assert.False(t, c.SniffBase64)
	assert.Equal(t, int64(8<<20), c.DirectUploadLimit)
	assert.Equal(t, BackendS3, c.Backend)
}

func TestParseFlags(t *testing.T) {
	withArgs(t, "-d", "postgres://x", "-k", "tok", "-x", "90m", "-L", "2MiB", "-m", "20", "-sniff=false", "-unknown", "1")

	c := defaults()
	parseFlags(&c)

	assert.Equal(t, "postgres://x", c.DatabaseDSN)
	assert.Equal(t, "tok", c.UploadToken)
	assert.Equal(t, 90*time.Minute, c.SessionMaxAge)
	assert.Equal(t, int64(2<<20), c.DirectUploadLimit)
	assert.Equal(t, 20, c.DefaultChunkMultiplier)
	assert.False(t, c.SniffBase64)
}

func TestParseFlags_BadValuePanics(t *testing.T) {
	withArgs(t, "-m", "many")
	c := defaults()
	assert.Panics(t, func() { parseFlags(&c) })
}

func TestMissingBackendSettings(t *testing.T) {
	c := defaults()
	assert.ElementsMatch(t, []string{
		"ONEDRIVE_CLIENT_ID", "ONEDRIVE_CLIENT_SECRET", "ONEDRIVE_TENANT_ID", "ONEDRIVE_USER_EMAIL",
	}, c.MissingBackendSettings())

	c.OneDriveClientID, c.OneDriveClientSecret, c.OneDriveTenantID, c.OneDriveUserEmail = "a", "b", "c", "d@e.f"
	assert.Empty(t, c.MissingBackendSettings())

	c.Backend = BackendS3
	assert.Equal(t, []string{"S3_ACCESS_KEY", "S3_SECRET_KEY"}, c.MissingBackendSettings())
}
