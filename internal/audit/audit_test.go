package audit

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	assert.Equal(t, "10.0.0.5", ClientIP(req))

	req.Header.Set("X-Real-IP", " 192.168.1.9 ")
	assert.Equal(t, "192.168.1.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(req))

	assert.Equal(t, "", ClientIP(nil))
}

func TestMemoryLogFillsDefaults(t *testing.T) {
	log := NewMemoryLog()
	req := httptest.NewRequest("POST", "/records/inline-update", nil)
	req.RemoteAddr = "10.1.1.1:9000"
	req.Header.Set("User-Agent", "test-agent")

	entry := FromRequest(req, "ali", "user", ActionRecordInline)
	entry.ResourceType = ResourceObservation
	entry.ResourceID = "42"
	entry.Metadata = Metadata(map[string]string{"field": "rainfall_mm"})
	require.NoError(t, log.Log(context.Background(), entry))

	entries := log.Entries()
	require.Len(t, entries, 1)
	got := entries[0]
	assert.True(t, strings.HasPrefix(got.ID, "audit-"))
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, "10.1.1.1", got.IP)
	assert.Equal(t, "test-agent", got.UserAgent)
	assert.Equal(t, DigestJSON(got.Metadata), got.PayloadDigest)
	assert.JSONEq(t, `{"field":"rainfall_mm"}`, string(got.Metadata))
}

func TestRepositoryNilGuard(t *testing.T) {
	assert.Nil(t, NewRepository(nil))
	var repo *Repository
	assert.Error(t, repo.Log(context.Background(), Entry{}))
}

func TestDigestJSONEmpty(t *testing.T) {
	assert.Equal(t, "", DigestJSON(nil))
	assert.Len(t, DigestJSON([]byte(`{}`)), 64)
}
