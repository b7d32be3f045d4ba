// Package drive implements core.BackupClient on the Google Drive v3 API.
// The backup is a single JSON document in the application data folder, which
// is private to the application and invisible in the user's Drive.
package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/aretw0/notekeep/pkg/core"
)

const (
	// DefaultFileName is the name of the backup document.
	DefaultFileName = "notekeep-backup.json"

	appDataFolder = "appDataFolder"
	jsonType      = "application/json"
)

// Client talks to Drive with a caller-provided OAuth access token.
type Client struct {
	http     *http.Client
	endpoint string
	fileName string
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the base transport. The access token is added on top.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithEndpoint points the client at another server, typically a test server.
// It is the metadata base path, such as "http://localhost:8080/drive/v3/".
func WithEndpoint(endpoint string) Option {
	return func(cl *Client) { cl.endpoint = endpoint }
}

// WithFileName overrides DefaultFileName.
func WithFileName(name string) Option {
	return func(cl *Client) { cl.fileName = name }
}

// WithLogger sets the logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a Drive backup client.
func New(opts ...Option) *Client {
	c := &Client{
		http:     http.DefaultClient,
		fileName: DefaultFileName,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadBackup replaces the backup document, creating it on first use.
func (c *Client) UploadBackup(ctx context.Context, token string, col core.Collection) error {
	files, err := c.service(ctx, token)
	if err != nil {
		return err
	}
	fileID, err := c.find(ctx, files)
	if err != nil {
		return err
	}

	content, err := col.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	media := googleapi.ContentType(jsonType)

	if fileID == "" {
		meta := &drivev3.File{Name: c.fileName, MimeType: jsonType, Parents: []string{appDataFolder}}
		_, err = files.Create(meta).Media(bytes.NewReader(content), media).Fields("id").Context(ctx).Do()
	} else {
		_, err = files.Update(fileID, &drivev3.File{}).Media(bytes.NewReader(content), media).Fields("id").Context(ctx).Do()
	}
	if err != nil {
		c.logFailure("upload", err)
		return fmt.Errorf("failed to upload backup: %w", err)
	}
	return nil
}

// GetBackup downloads the backup document. A missing document, or one whose
// notes and trashed fields are not arrays, is reported as absent.
func (c *Client) GetBackup(ctx context.Context, token string) (core.Collection, bool, error) {
	files, err := c.service(ctx, token)
	if err != nil {
		return core.Collection{}, false, err
	}
	fileID, err := c.find(ctx, files)
	if err != nil {
		return core.Collection{}, false, err
	}
	if fileID == "" {
		return core.Collection{}, false, nil
	}

	resp, err := files.Get(fileID).Context(ctx).Download()
	if err != nil {
		c.logFailure("download", err)
		return core.Collection{}, false, fmt.Errorf("failed to download backup: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Collection{}, false, fmt.Errorf("failed to read backup: %w", err)
	}
	col, ok := core.ParseCollection(data)
	if !ok {
		c.logger.Warn("backup document is malformed", "file_id", fileID)
	}
	return col, ok, nil
}

// service builds a Files client that authenticates with token.
func (c *Client) service(ctx context.Context, token string) (*drivev3.FilesService, error) {
	base := context.WithValue(ctx, oauth2.HTTPClient, c.http)
	hc := oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}
	return svc.Files, nil
}

// find returns the id of the backup document, or "" when there is none.
// A failed search is an error: treating it as "no file" would create a
// duplicate document on the next upload.
func (c *Client) find(ctx context.Context, files *drivev3.FilesService) (string, error) {
	q := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", quote(c.fileName), appDataFolder)
	list, err := files.List().Q(q).Spaces(appDataFolder).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		c.logFailure("search", err)
		return "", fmt.Errorf("failed to search for backup file: %w", err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (c *Client) logFailure(op string, err error) {
	attrs := []any{"op", op, "error", err}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		attrs = append(attrs, "status", ge.Code)
	}
	c.logger.Error("drive request failed", attrs...)
}

// quote escapes a string literal of the Drive query language.
func quote(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

var _ core.BackupClient = (*Client)(nil)
