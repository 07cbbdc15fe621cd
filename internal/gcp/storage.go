package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/casefileflow/pkg/casefile"
	"google.golang.org/api/googleapi"
)

const gsScheme = "gs://"

// ParseGSURI splits gs://bucket/object into its parts.
func ParseGSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, gsScheme)
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs uri %q needs a bucket and an object", uri)
	}
	return bucket, object, nil
}

// StorageSource loads document PDFs from GCS. Paths that are not gs:// URIs
// go to the fallback source.
type StorageSource struct {
	client   *storage.Client
	fallback casefile.PDFSource
}

func NewStorageSource(client *storage.Client, fallback casefile.PDFSource) *StorageSource {
	if fallback == nil {
		fallback = casefile.FileSource{}
	}
	return &StorageSource{client: client, fallback: fallback}
}

func (s *StorageSource) Load(ctx context.Context, path string) ([]byte, error) {
	if !strings.HasPrefix(path, gsScheme) {
		return s.fallback.Load(ctx, path)
	}
	bucket, object, err := ParseGSURI(path)
	if err != nil {
		return nil, err
	}
	reader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for %s: %w", path, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", path, err)
	}
	return data, nil
}

// Archive writes objects into one bucket without overwriting.
type Archive struct {
	bucket     *storage.BucketHandle
	bucketName string
}

func NewArchive(client *storage.Client, bucketName string) *Archive {
	return &Archive{bucket: client.Bucket(bucketName), bucketName: bucketName}
}

// PutIfAbsent stores data under object unless it already exists. created is
// false when the object was already there.
func (a *Archive) PutIfAbsent(ctx context.Context, object string, data []byte) (uri string, created bool, err error) {
	uri = fmt.Sprintf("%s%s/%s", gsScheme, a.bucketName, object)
	created, err = SaveToGCSAtomically(ctx, a.bucket, object, data)
	return uri, created, err
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't
// already exist. An existing object is reported as created=false, not as an
// error.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName string, content []byte) (bool, error) {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/pdf"

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Object already exists. Skipping.", "gcsObject", objectName)
			return false, nil
		}
		return false, fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists. Skipping.", "gcsObject", objectName)
			return false, nil
		}
		return false, fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return true, nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
