package api_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frahmantamala/paygw-chargebee/api"
)

func TestLoad(t *testing.T) {
	doc, err := api.Load(context.Background())
	require.NoError(t, err)

	for _, path := range []string{"/ping", "/health", "/checkout/start", "/checkout/return"} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}
}
