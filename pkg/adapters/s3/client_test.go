package s3_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notekeep/pkg/adapters/s3"
	"github.com/aretw0/notekeep/pkg/core"
)

// fakeBucket serves path-style object requests from memory.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	tokens  []string
	deny    bool
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, r.Header.Get("X-Amz-Security-Token"))

	if f.deny {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
		return
	}
	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = data
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newClient(t *testing.T) (*fakeBucket, *s3.Client) {
	t.Helper()
	f := &fakeBucket{objects: map[string][]byte{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := s3.New(s3.Config{
		Bucket:          "notes",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		HTTPClient:      srv.Client(),
	})
	require.NoError(t, err)
	return f, c
}

func TestNew_RequiresSettings(t *testing.T) {
	_, err := s3.New(s3.Config{Bucket: "b", Region: "r"})
	assert.Error(t, err)
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing Object Is Absent", func(t *testing.T) {
		_, c := newClient(t)
		_, ok, err := c.GetBackup(ctx, "tok")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Round Trip Uses Token", func(t *testing.T) {
		f, c := newClient(t)
		n := core.NewNote("a", 5)
		col := core.Collection{Notes: []core.Note{n}, Trashed: []core.Note{}}
		require.NoError(t, c.UploadBackup(ctx, "tok", col))

		got, ok, err := c.GetBackup(ctx, "tok")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, col, got)

		f.mu.Lock()
		defer f.mu.Unlock()
		assert.Contains(t, f.objects, "/notes/"+s3.DefaultKey)
		for _, tok := range f.tokens {
			assert.Equal(t, "tok", tok)
		}
	})

	t.Run("Malformed Object Is Absent", func(t *testing.T) {
		f, c := newClient(t)
		f.mu.Lock()
		f.objects["/notes/"+s3.DefaultKey] = []byte(`{"notes": []}`)
		f.mu.Unlock()
		_, ok, err := c.GetBackup(ctx, "tok")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Denied Is An Error", func(t *testing.T) {
		f, c := newClient(t)
		f.mu.Lock()
		f.deny = true
		f.mu.Unlock()
		err := c.UploadBackup(ctx, "tok", core.Collection{})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "AccessDenied"))
		_, _, err = c.GetBackup(ctx, "tok")
		assert.Error(t, err)
	})
}
