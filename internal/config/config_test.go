package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load("api")
	require.NoError(t, err)

	assert.Equal(t, "api", cfg.RunMode)
	assert.Equal(t, "opalpixel", cfg.MongoDbName)
	assert.Equal(t, "8080", cfg.ApiPort)
	assert.Equal(t, 24*time.Hour, cfg.JwtTTL)
	assert.Equal(t, "OPL", cfg.InvoiceNumberPrefix)
	assert.Equal(t, "REC", cfg.ReceiptNumberPrefix)
	assert.Equal(t, 3, cfg.InvoiceNumberMaxRetries)
	assert.Equal(t, 25, cfg.PageSizeDefault)
	assert.Equal(t, 100, cfg.PageSizeMax)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load("api")
	assert.ErrorContains(t, err, "MONGO_URI")
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("INVOICE_NUMBER_MAX_RETRIES", "three")

	_, err := Load("api")
	assert.ErrorContains(t, err, "INVOICE_NUMBER_MAX_RETRIES")
}

func TestLoad_InvalidPageSizes(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAGE_SIZE_DEFAULT", "50")
	t.Setenv("PAGE_SIZE_MAX", "10")

	_, err := Load("api")
	assert.ErrorContains(t, err, "invalid page sizes")
}
