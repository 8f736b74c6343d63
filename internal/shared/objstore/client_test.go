package objstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadre-portal/internal/config"
)

func TestArchiveKey(t *testing.T) {
	ts := time.Date(2024, time.April, 1, 2, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))

	// IST 04-01 02:00 对应 UTC 03-31 20:30
	assert.Equal(t, "exports/2024/03/abc.csv", ArchiveKey(ts, "abc", "csv"))
	assert.Equal(t, "exports/2024/03/abc.pdf", ArchiveKey(ts, "abc", ".pdf"))
	assert.Equal(t, "exports/2024/03/abc", ArchiveKey(ts, "abc", ""))
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(config.MinIOConfig{})
	require.Error(t, err)

	_, err = NewClient(config.MinIOConfig{Endpoint: "localhost:9000"})
	require.Error(t, err)

	c, err := NewClient(config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBucket, c.Bucket())

	c, err = NewClient(config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "exports"})
	require.NoError(t, err)
	assert.Equal(t, "exports", c.Bucket())
}
