package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/contractflow/contractflow/internal/service"
	"github.com/stretchr/testify/require"
)

func TestParseListQuery(t *testing.T) {
	t.Run("defaults to newest first", func(t *testing.T) {
		in, err := parseListQuery(httptest.NewRequest("GET", "/api/v1/contracts", nil))
		require.NoError(t, err)
		require.True(t, in.SortDesc)
		require.Equal(t, defaultListLimit, in.Limit)
	})

	t.Run("ascending on request", func(t *testing.T) {
		in, err := parseListQuery(httptest.NewRequest("GET", "/api/v1/contracts?order=asc", nil))
		require.NoError(t, err)
		require.False(t, in.SortDesc)
	})

	t.Run("explicit descending", func(t *testing.T) {
		in, err := parseListQuery(httptest.NewRequest("GET", "/api/v1/contracts?order=desc", nil))
		require.NoError(t, err)
		require.True(t, in.SortDesc)
	})

	t.Run("unknown sort key", func(t *testing.T) {
		_, err := parseListQuery(httptest.NewRequest("GET", "/api/v1/contracts?sort_by=owner", nil))
		require.ErrorIs(t, err, service.ErrValidation)
	})
}
