package storage

import (
	"testing"

	"github.com/global-done/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCOSStorage_Validation(t *testing.T) {
	valid := COSConfig{
		Bucket:    "report-archive",
		Region:    "ap-guangzhou",
		SecretID:  "test-id",
		SecretKey: "test-key",
	}

	tests := []struct {
		name    string
		mutate  func(*COSConfig)
		wantErr string
	}{
		{"MissingBucket", func(c *COSConfig) { c.Bucket = "" }, "bucket and region are required"},
		{"MissingRegion", func(c *COSConfig) { c.Region = "" }, "bucket and region are required"},
		{"MissingSecretID", func(c *COSConfig) { c.SecretID = "" }, "credentials are required"},
		{"MissingSecretKey", func(c *COSConfig) { c.SecretKey = "" }, "credentials are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			store, err := NewCOSStorage(&cfg)
			require.Error(t, err)
			assert.Nil(t, store)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("ValidConfig", func(t *testing.T) {
		cfg := valid
		store, err := NewCOSStorage(&cfg)
		require.NoError(t, err)
		assert.NotNil(t, store)
	})
}

func TestCOSStorage_GetURL(t *testing.T) {
	store, err := NewCOSStorage(&COSConfig{
		Bucket:    "report-archive",
		Region:    "ap-guangzhou",
		SecretID:  "test-id",
		SecretKey: "test-key",
	})
	require.NoError(t, err)

	url := store.GetURL("reports/run-7.json.zst")
	assert.Equal(t, "https://report-archive.cos.ap-guangzhou.myqcloud.com/reports/run-7.json.zst", url)
}

func TestNewStorage_COS(t *testing.T) {
	store, err := NewStorage(&config.StorageConfig{
		Type:      "cos",
		Bucket:    "report-archive",
		Region:    "ap-guangzhou",
		SecretID:  "test-id",
		SecretKey: "test-key",
	})
	require.NoError(t, err)

	_, ok := store.(*COSStorage)
	assert.True(t, ok, "expected a COSStorage backend")
}

func TestValidateConfig(t *testing.T) {
	t.Run("NilConfig", func(t *testing.T) {
		err := ValidateConfig(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage config is nil")
	})

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr string
	}{
		{"UnknownType", config.StorageConfig{Type: "s3"}, "unsupported storage type"},
		{"COSMissingBucket", config.StorageConfig{Type: "cos", Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"}, "COS bucket is required"},
		{"COSMissingRegion", config.StorageConfig{Type: "cos", Bucket: "report-archive", SecretID: "id", SecretKey: "key"}, "COS region is required"},
		{"COSMissingCredentials", config.StorageConfig{Type: "cos", Bucket: "report-archive", Region: "ap-guangzhou"}, "COS credentials are required"},
		{"LocalMissingPath", config.StorageConfig{Type: "local"}, "local storage path is required"},
		{"ValidCOS", config.StorageConfig{Type: "cos", Bucket: "report-archive", Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"}, ""},
		{"ValidLocal", config.StorageConfig{Type: "local", LocalPath: "/tmp/reports"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(&tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
