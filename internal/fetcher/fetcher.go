// Package fetcher downloads referenced documents from Google Cloud Storage and
// maps storage failures onto the service's error taxonomy.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
)

// Fetcher returns the bytes of a referenced document.
type Fetcher interface {
	Fetch(ctx context.Context, ref ingestion.DocumentReference) ([]byte, error)
}

// GCS fetches objects from a single bucket.
type GCS struct {
	client      *storage.Client
	bucket      *storage.BucketHandle
	name        string
	userProject string
	maxBytes    int64
	logger      *slog.Logger
}

// NewGCS creates a storage client, using application default credentials
// unless opts say otherwise. A configured ProjectID is billed for requests,
// which requester-pays buckets require.
func NewGCS(ctx context.Context, cfg config.StorageConfig, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConnection, err, "creating storage client")
	}
	bucket := client.Bucket(cfg.Bucket)
	if cfg.ProjectID != "" {
		bucket = bucket.UserProject(cfg.ProjectID)
	}
	return &GCS{
		client:      client,
		bucket:      bucket,
		name:        cfg.Bucket,
		userProject: cfg.ProjectID,
		maxBytes:    cfg.MaxDocumentBytes,
		logger:      slog.Default().With("component", "gcs-fetcher", "bucket", cfg.Bucket),
	}, nil
}

// Fetch downloads the object named by ref. Objects over the configured size
// limit are rejected as malformed without reading them in full.
func (g *GCS) Fetch(ctx context.Context, ref ingestion.DocumentReference) ([]byte, error) {
	object := ref.ObjectName()
	r, err := g.bucket.Object(object).NewReader(ctx)
	if err != nil {
		return nil, classify(err, g.name, object)
	}
	defer r.Close()

	if size := r.Attrs.Size; g.maxBytes > 0 && size > g.maxBytes {
		return nil, apperrors.Newf(apperrors.ErrMalformedDocument,
			"gs://%s/%s is %d bytes, limit is %d", g.name, object, size, g.maxBytes)
	}
	limit := g.maxBytes
	if limit <= 0 {
		limit = r.Attrs.Size
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, classify(err, g.name, object)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.Newf(apperrors.ErrMalformedDocument,
			"gs://%s/%s exceeds %d bytes", g.name, object, limit)
	}
	g.logger.Debug("fetched document", "object", object, "bytes", len(data))
	return data, nil
}

// List calls fn with a reference for every object under prefix, in
// lexical order. Directory placeholder objects ending in "/" are skipped.
// Iteration stops at the first error returned by fn.
func (g *GCS) List(ctx context.Context, prefix string, fn func(ingestion.DocumentReference) error) error {
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return classify(err, g.name, prefix)
		}
		ref, ok := ReferenceFor(attrs.Name)
		if !ok {
			continue
		}
		if err := fn(ref); err != nil {
			return err
		}
	}
}

// ReferenceFor splits an object name into the folder and filename of a
// document reference. References need both parts, so objects at the bucket
// root and names ending in "/" are rejected.
func ReferenceFor(object string) (ingestion.DocumentReference, bool) {
	i := strings.LastIndex(object, "/")
	if i <= 0 || i == len(object)-1 {
		return ingestion.DocumentReference{}, false
	}
	return ingestion.DocumentReference{FolderPath: object[:i], Filename: object[i+1:]}, true
}

// Ping checks that the bucket is reachable.
func (g *GCS) Ping(ctx context.Context) error {
	if _, err := g.bucket.Attrs(ctx); err != nil {
		return classify(err, g.name, "")
	}
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func classify(err error, bucket, object string) error {
	where := fmt.Sprintf("gs://%s/%s", bucket, object)
	// A missing bucket is a deployment problem, not a property of the
	// document, so it must not dead-letter every event.
	if errors.Is(err, storage.ErrBucketNotExist) {
		return apperrors.Wrap(apperrors.ErrUpstreamUnavailable, err, "bucket missing for "+where)
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return apperrors.Wrap(apperrors.ErrNotFound, err, where)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.ErrTimeout, err, "fetching "+where)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return apperrors.Wrap(apperrors.ErrNotFound, err, where)
	}
	return apperrors.Wrap(apperrors.ErrUpstreamUnavailable, err, "fetching "+where)
}
