package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/requestid"
)

func roundTrip(t *testing.T, header string) (seenInContext string, echoed string) {
	t.Helper()

	handler := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInContext = requestid.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	if header != "" {
		req.Header.Set(requestid.Header, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	return seenInContext, rec.Header().Get(requestid.Header)
}

func TestMiddlewareGeneratesID(t *testing.T) {
	t.Parallel()

	inCtx, echoed := roundTrip(t, "")
	require.NotEmpty(t, inCtx)
	assert.Equal(t, inCtx, echoed)

	_, err := uuid.Parse(echoed)
	assert.NoError(t, err, "generated id should be a uuid")
}

func TestMiddlewarePropagatesClientID(t *testing.T) {
	t.Parallel()

	for _, id := range []string{
		"req-42",
		"trace_0001",
		"550e8400-e29b-41d4-a716-446655440000",
		"ABC-123_xyz",
	} {
		t.Run(id, func(t *testing.T) {
			t.Parallel()
			inCtx, echoed := roundTrip(t, id)
			assert.Equal(t, id, inCtx)
			assert.Equal(t, id, echoed)
		})
	}
}

func TestMiddlewareReplacesInvalidID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"special chars": "req@42#a",
		"spaces":        "req 42",
		"slashes":       "a/b/c",
		"html":          "<script>alert(1)</script>",
		"too long":      strings.Repeat("x", 129),
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			inCtx, echoed := roundTrip(t, bad)
			assert.NotEqual(t, bad, inCtx)
			assert.NotEmpty(t, echoed)
			assert.NotEqual(t, bad, echoed)
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := requestid.WithContext(context.Background(), "req-7")
	assert.Equal(t, "req-7", requestid.FromContext(ctx))
	assert.Empty(t, requestid.FromContext(context.Background()))
}
