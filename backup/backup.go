// Package backup copies the store file to S3-compatible storage
// after every save and restores it on startup.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/kjk/studentdb/atomicfile"
	"github.com/kjk/studentdb/log"
	"github.com/kjk/studentdb/u"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned by Restore when there's no backup yet
var ErrNotFound = errors.New("backup not found")

type Config struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	// remote directory, e.g. "studentdb"
	Prefix string
	// if true, upload brotli-compressed copy with .br extension
	Compress bool
	// for local minio
	Insecure     bool
	RequestTrace io.Writer
}

// ConfigFromEnv builds config from BACKUP_* variables.
// Returns nil if BACKUP_BUCKET is not set i.e. backup is not configured.
func ConfigFromEnv(env map[string]string) *Config {
	if env["BACKUP_BUCKET"] == "" {
		return nil
	}
	return &Config{
		Access:   env["BACKUP_ACCESS"],
		Secret:   env["BACKUP_SECRET"],
		Bucket:   env["BACKUP_BUCKET"],
		Endpoint: env["BACKUP_ENDPOINT"],
		Region:   env["BACKUP_REGION"],
		Prefix:   env["BACKUP_PREFIX"],
		Compress: env["BACKUP_COMPRESS"] == "true",
		Insecure: env["BACKUP_INSECURE"] == "true",
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("must provide config")
	}
	var missing []string
	if c.Access == "" {
		missing = append(missing, "BACKUP_ACCESS")
	}
	if c.Secret == "" {
		missing = append(missing, "BACKUP_SECRET")
	}
	if c.Bucket == "" {
		missing = append(missing, "BACKUP_BUCKET")
	}
	if c.Endpoint == "" {
		missing = append(missing, "BACKUP_ENDPOINT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("backup config is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// RemotePath returns the object name for a local file
func (c *Config) RemotePath(localPath string) string {
	name := filepath.Base(localPath)
	if c.Compress {
		name += ".br"
	}
	return path.Join(c.Prefix, name)
}

type Client struct {
	Client *minio.Client
	config *Config
}

// New connects to the storage and checks that the bucket exists
func New(ctx context.Context, config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := config
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if c.RequestTrace != nil {
		mc.TraceOn(c.RequestTrace)
	}
	found, err := mc.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &Client{
		Client: mc,
		config: config,
	}, nil
}

// Upload uploads localPath, compressing it first if configured
func (c *Client) Upload(ctx context.Context, localPath string) (minio.UploadInfo, error) {
	remotePath := c.config.RemotePath(localPath)
	d, err := os.ReadFile(localPath)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	opts := minio.PutObjectOptions{
		ContentType: u.MimeTypeFromFileName(localPath),
	}
	if c.config.Compress {
		if d, err = u.BrCompressData(d, brotli.BestCompression); err != nil {
			return minio.UploadInfo{}, err
		}
		opts.ContentEncoding = "br"
	}
	r := bytes.NewReader(d)
	return c.Client.PutObject(ctx, c.config.Bucket, remotePath, r, int64(len(d)), opts)
}

// writeAtomically writes r to dstPath, decompressing if compressed
func writeAtomically(dstPath string, r io.Reader, compressed bool) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	f, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if compressed {
		r = brotli.NewReader(r)
	}
	if _, err = io.Copy(f, r); err != nil {
		return err
	}
	return f.Close()
}

// Restore downloads the backup of localPath over localPath.
// Returns ErrNotFound if there is no backup.
func (c *Client) Restore(ctx context.Context, localPath string) error {
	remotePath := c.config.RemotePath(localPath)
	obj, err := c.Client.GetObject(ctx, c.config.Bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()
	if _, err = obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: '%s'", ErrNotFound, remotePath)
		}
		return err
	}
	return writeAtomically(localPath, obj, c.config.Compress)
}

// Uploader uploads a file in the background. Notifications that arrive
// while an upload is in progress are coalesced into one more upload.
type Uploader struct {
	upload  func(ctx context.Context, path string) error
	path    string
	pending chan struct{}
	done    chan struct{}
}

func NewUploader(c *Client, localPath string) *Uploader {
	upload := func(ctx context.Context, p string) error {
		_, err := c.Upload(ctx, p)
		return err
	}
	return newUploader(upload, localPath)
}

func newUploader(upload func(ctx context.Context, localPath string) error, localPath string) *Uploader {
	up := &Uploader{
		upload:  upload,
		path:    localPath,
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go up.run()
	return up
}

func (up *Uploader) run() {
	defer close(up.done)
	for range up.pending {
		err := up.upload(context.Background(), up.path)
		if !log.IfErrf(err, "backup: upload of '%s' failed with '%s'\n", up.path, err) {
			log.Verbosef("backup: uploaded '%s'\n", up.path)
		}
	}
}

// Notify schedules an upload. It never blocks.
func (up *Uploader) Notify() {
	select {
	case up.pending <- struct{}{}:
	default:
		// upload already scheduled
	}
}

// Close waits for scheduled upload to finish. Notify must not be called after Close.
func (up *Uploader) Close() {
	close(up.pending)
	<-up.done
}
