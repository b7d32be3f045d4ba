package drive_test

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/aretw0/notekeep/pkg/adapters/drive"
	"github.com/aretw0/notekeep/pkg/core"
)

const token = "secret-token"

// fakeDrive keeps files of the application data folder in memory.
type fakeDrive struct {
	mu        sync.Mutex
	files     map[string][]byte
	names     map[string]string
	parents   map[string][]string
	nextID    int
	searches  []string
	failList  int // status returned by list when non-zero
	patches   int
	creations int
}

func newFakeDrive(t *testing.T, opts ...drive.Option) (*fakeDrive, *drive.Client) {
	t.Helper()
	f := &fakeDrive{files: map[string][]byte{}, names: map[string]string{}, parents: map[string][]string{}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error": {"code": 401, "message": "invalid credentials"}}`)
			return
		}
		f.route(w, r)
	}))
	t.Cleanup(srv.Close)

	opts = append([]drive.Option{drive.WithHTTPClient(srv.Client()), drive.WithEndpoint(srv.URL + "/drive/v3/")}, opts...)
	return f, drive.New(opts...)
}

// route dispatches on the part of the path after /files, so metadata and
// upload endpoints share handlers whatever prefix the client uses.
func (f *fakeDrive) route(w http.ResponseWriter, r *http.Request) {
	i := strings.Index(r.URL.Path, "/files")
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path[i+len("/files"):], "/")
	upload := strings.Contains(r.URL.Path, "/upload/")
	switch {
	case r.Method == http.MethodGet && id == "":
		f.list(w, r)
	case r.Method == http.MethodGet:
		f.download(w, r, id)
	case r.Method == http.MethodPost && upload && id == "":
		f.create(w, r)
	case r.Method == http.MethodPatch && upload:
		f.replace(w, r, id)
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusMethodNotAllowed)
	}
}

func (f *fakeDrive) counts() (creations, patches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creations, f.patches
}

func (f *fakeDrive) put(id string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[id] = data
}

func (f *fakeDrive) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, r.URL.Query().Get("q"))
	if f.failList != 0 {
		http.Error(w, "boom", f.failList)
		return
	}
	if r.URL.Query().Get("spaces") != "appDataFolder" || r.URL.Query().Get("fields") != "files(id)" {
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}
	type file struct {
		ID string `json:"id"`
	}
	out := struct {
		Files []file `json:"files"`
	}{Files: []file{}}
	wanted, ok := queryName(r.URL.Query().Get("q"))
	if !ok {
		http.Error(w, "bad name literal", http.StatusBadRequest)
		return
	}
	for id, name := range f.names {
		if name == wanted {
			out.Files = append(out.Files, file{ID: id})
		}
	}
	_ = json.NewEncoder(w).Encode(out)
}

// queryName reads the name='...' literal that starts a search, undoing
// backslash escapes.
func queryName(q string) (string, bool) {
	rest, ok := strings.CutPrefix(q, "name='")
	if !ok {
		return "", false
	}
	var b strings.Builder
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '\\':
			i++
			if i == len(rest) {
				return "", false
			}
			b.WriteByte(rest[i])
		case '\'':
			return b.String(), true
		default:
			b.WriteByte(rest[i])
		}
	}
	return "", false
}

func (f *fakeDrive) download(w http.ResponseWriter, r *http.Request, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[id]
	if !ok || r.URL.Query().Get("alt") != "media" {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(data)
}

func (f *fakeDrive) create(w http.ResponseWriter, r *http.Request) {
	meta, content, err := readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := "file" + string(rune('0'+f.nextID))
	f.names[id] = meta.Name
	f.parents[id] = meta.Parents
	f.files[id] = content
	f.creations++
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (f *fakeDrive) replace(w http.ResponseWriter, r *http.Request, id string) {
	_, content, err := readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[id]; !ok {
		http.NotFound(w, r)
		return
	}
	f.files[id] = content
	f.patches++
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

type uploadMeta struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents"`
}

func readUpload(r *http.Request) (uploadMeta, []byte, error) {
	var meta uploadMeta
	if r.URL.Query().Get("uploadType") != "multipart" {
		return meta, nil, io.ErrUnexpectedEOF
	}
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/related" {
		return meta, nil, io.ErrUnexpectedEOF
	}
	mr := multipart.NewReader(r.Body, params["boundary"])
	part, err := mr.NextPart()
	if err != nil {
		return meta, nil, err
	}
	if err := json.NewDecoder(part).Decode(&meta); err != nil {
		return meta, nil, err
	}
	part, err = mr.NextPart()
	if err != nil {
		return meta, nil, err
	}
	content, err := io.ReadAll(part)
	return meta, content, err
}

func sample() core.Collection {
	a := core.NewNote("a", 10)
	a.Title = "kept"
	b := core.NewNote("b", 20)
	b.IsTrashed = true
	return core.Collection{Notes: []core.Note{a}, Trashed: []core.Note{b}}
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f, c := newFakeDrive(t)

	t.Run("Missing Backup Is Absent", func(t *testing.T) {
		_, ok, err := c.GetBackup(ctx, token)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("First Upload Creates In App Folder", func(t *testing.T) {
		require.NoError(t, c.UploadBackup(ctx, token, sample()))
		creations, _ := f.counts()
		assert.Equal(t, 1, creations)
		f.mu.Lock()
		defer f.mu.Unlock()
		assert.Equal(t, []string{"appDataFolder"}, f.parents["file1"])
		assert.Equal(t, drive.DefaultFileName, f.names["file1"])
		assert.Contains(t, f.searches[0], "'appDataFolder' in parents and trashed=false")
	})

	t.Run("Second Upload Replaces", func(t *testing.T) {
		col := sample()
		col.Notes[0].Title = "changed"
		require.NoError(t, c.UploadBackup(ctx, token, col))
		creations, patches := f.counts()
		assert.Equal(t, 1, creations)
		assert.Equal(t, 1, patches)

		got, ok, err := c.GetBackup(ctx, token)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, col, got)
	})
}

func TestClient_QuotedFileName(t *testing.T) {
	ctx := context.Background()
	name := `o'brien\\notes.json`
	f, c := newFakeDrive(t, drive.WithFileName(name))

	require.NoError(t, c.UploadBackup(ctx, token, sample()))
	require.NoError(t, c.UploadBackup(ctx, token, sample()))
	creations, patches := f.counts()
	assert.Equal(t, 1, creations, "second upload finds the first document")
	assert.Equal(t, 1, patches)

	f.mu.Lock()
	assert.Equal(t, name, f.names["file1"])
	assert.Contains(t, f.searches[0], `name='o\'brien\\\\notes.json'`)
	f.mu.Unlock()

	got, ok, err := c.GetBackup(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sample(), got)
}

func TestClient_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("Rejected Token", func(t *testing.T) {
		_, c := newFakeDrive(t)
		err := c.UploadBackup(ctx, "wrong", sample())
		var ge *googleapi.Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, http.StatusUnauthorized, ge.Code)
	})

	t.Run("Failed Search Does Not Create", func(t *testing.T) {
		f, c := newFakeDrive(t)
		f.mu.Lock()
		f.failList = http.StatusInternalServerError
		f.mu.Unlock()
		require.Error(t, c.UploadBackup(ctx, token, sample()))
		creations, _ := f.counts()
		assert.Zero(t, creations)

		_, _, err := c.GetBackup(ctx, token)
		assert.Error(t, err)
	})

	t.Run("Malformed Document Is Absent", func(t *testing.T) {
		f, c := newFakeDrive(t)
		require.NoError(t, c.UploadBackup(ctx, token, core.Collection{}))
		f.put("file1", []byte(`{"notes": {}, "trashed": []}`))
		_, ok, err := c.GetBackup(ctx, token)
		require.NoError(t, err)
		assert.False(t, ok)

		f.put("file1", []byte(`not json`))
		_, ok, err = c.GetBackup(ctx, token)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Empty Collection Uploads Arrays", func(t *testing.T) {
		f, c := newFakeDrive(t)
		require.NoError(t, c.UploadBackup(ctx, token, core.Collection{}))
		got, ok, err := c.GetBackup(ctx, token)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Empty(t, got.Notes)
		f.mu.Lock()
		defer f.mu.Unlock()
		assert.Contains(t, string(f.files["file1"]), `"notes": []`)
	})
}
