package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-trademark-backend/internal/domain"
)

func TestNormalizeNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  bool
	}{
		{"987654321", "987654321", false},
		{" 987.654.321 ", "987654321", false},
		{"1234", "", true},
		{"12a456", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeNumber(tc.in)
		if tc.err {
			assert.ErrorIs(t, err, ErrInvalidNumber, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestFixtureRegistry_Embedded(t *testing.T) {
	r, err := NewFixtureRegistry("", 0)
	require.NoError(t, err)
	ctx := context.Background()

	cafe, err := r.Search(ctx, "987654321")
	require.NoError(t, err)
	assert.Equal(t, "CAFE TECH", cafe.Brand)
	assert.Equal(t, "30", cafe.Class)
	require.Len(t, cafe.Dispatches, 1)
	assert.Equal(t, "IP002", cafe.Dispatches[0].Code)
	assert.Equal(t, domain.DispatchInformative, cafe.Dispatches[0].Status)
	assert.False(t, cafe.Dispatches[0].IsCritical)

	future, err := r.Search(ctx, "123456789")
	require.NoError(t, err)
	assert.Equal(t, "FUTURE APPS", future.Brand)
	assert.Equal(t, domain.DispatchPendingAction, future.Dispatches[0].Status)
	assert.True(t, future.Dispatches[0].IsCritical)

	_, err = r.Search(ctx, "000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	// Results are copies.
	cafe.Dispatches[0].Code = "changed"
	again, err := r.Search(ctx, "987654321")
	require.NoError(t, err)
	assert.Equal(t, "IP002", again.Dispatches[0].Code)

	assert.ElementsMatch(t, []string{"987654321", "123456789"}, r.Numbers())
}

func TestFixtureRegistry_LatencyHonoursContext(t *testing.T) {
	r, err := NewFixtureRegistry("", time.Hour)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = r.Search(ctx, "987654321")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFixtureRegistry_ExternalFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
cases:
  - number: "55555"
    brand: X
    dispatches:
      - code: D1
        status: decision
`), 0o600))
	r, err := NewFixtureRegistry(good, 0)
	require.NoError(t, err)
	snap, err := r.Search(context.Background(), "55555")
	require.NoError(t, err)
	assert.Equal(t, "X", snap.Brand)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
cases:
  - number: "55555"
    dispatches:
      - code: D1
        status: PENDING
`), 0o600))
	_, err = NewFixtureRegistry(bad, 0)
	assert.Error(t, err)

	_, err = NewFixtureRegistry(filepath.Join(dir, "missing.yaml"), 0)
	assert.Error(t, err)
}

func TestHTTPRegistry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cases/987654321":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"number":"987654321","brand":"CAFE TECH","class":"30",
				"dispatches":[{"code":"IP002","status":"informative"},{"code":"BAD","status":"??"}]}`))
		case "/cases/500":
			w.WriteHeader(http.StatusInternalServerError)
		case "/cases/garbage":
			_, _ = w.Write([]byte(`{`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewHTTPRegistry(srv.URL+"/", time.Second)
	ctx := context.Background()

	snap, err := r.Search(ctx, "987654321")
	require.NoError(t, err)
	assert.Equal(t, "CAFE TECH", snap.Brand)
	require.Len(t, snap.Dispatches, 1)

	_, err = r.Search(ctx, "111111")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Search(ctx, "500")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = r.Search(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestHTTPRegistry_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPRegistry(url, 200*time.Millisecond).Search(context.Background(), "987654321")
	assert.ErrorIs(t, err, ErrUnavailable)
}
