package backend

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
	"github.com/aistore-oss/dstore/query"
)

// S3Backend wraps aws-sdk-go-v2's S3 client behind the datastore contract.
// It is a leaf, not an adapter: no child datastore.
type S3Backend struct {
	client *s3.Client
	bucket string
}

// NewS3 builds the backend's Datastore-facing handle. client is a pre-built
// aws-sdk-go-v2 S3 client; construction of credentials/region is the
// caller's concern.
func NewS3(client *s3.Client, bucket string) *datastore.Base {
	return datastore.NewBase(&S3Backend{client: client, bucket: bucket})
}

// NewS3Default resolves the ambient AWS credential/region chain (env, shared
// config, IMDS) and builds the backend over it, for callers without a
// pre-assembled client.
func NewS3Default(ctx context.Context, bucket string) (*datastore.Base, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, cos.WrapInternal(err, "s3: load aws config")
	}
	return NewS3(s3.NewFromConfig(cfg), bucket), nil
}

// Get issues GetObject and wraps the response body as an RStream carrying
// ContentLength as Size and LastModified as MTime.
func (s *S3Backend) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName(k)),
	})
	if err != nil {
		return nil, s3Err(k, err)
	}
	meta := dsmeta.Meta{}
	if out.ContentLength != nil {
		meta.Size = dsmeta.Some(uint64(*out.ContentLength))
	}
	if out.LastModified != nil {
		meta.MTime = dsmeta.Some(float64(out.LastModified.Unix()))
	}
	return newReaderStream(out.Body, meta), nil
}

// PutStream uploads via the v2 manager uploader, fed by draining the
// canonical stream: the uploader wants an io.Reader, and Collect hands it
// one without the backend reimplementing multipart chunking itself.
func (s *S3Backend) PutStream(ctx context.Context, k key.Key, v dsio.RStream) error {
	b, err := v.Collect(ctx)
	if err != nil {
		return err
	}
	uploader := manager.NewUploader(s.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName(k)),
		Body:   newBytesReader(b),
	})
	if err != nil {
		return s3Err(k, err)
	}
	return nil
}

func (s *S3Backend) Delete(ctx context.Context, k key.Key) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName(k)),
	})
	if err != nil {
		return s3Err(k, err)
	}
	return nil
}

// Stat issues HeadObject without transferring the body; the derived
// default would otherwise open and immediately close a full Get.
func (s *S3Backend) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName(k)),
	})
	if err != nil {
		return dsmeta.Meta{}, s3Err(k, err)
	}
	m := dsmeta.Meta{}
	if out.ContentLength != nil {
		m.Size = dsmeta.Some(uint64(*out.ContentLength))
	}
	if out.LastModified != nil {
		m.MTime = dsmeta.Some(float64(out.LastModified.Unix()))
	}
	return m, nil
}

func (s *S3Backend) Contains(ctx context.Context, k key.Key) (bool, error) {
	_, err := s.Stat(ctx, k)
	if err != nil {
		if cos.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3Backend) Close() error { return nil }

func (s *S3Backend) Query(context.Context, query.Query) (query.Cursor, error) {
	return query.NewSliceCursor(nil), nil
}

// s3Err maps "object not found" provider errors to cos.ErrNotFound and
// everything else to an opaque internal error with a stack trace via
// pkg/errors.
func s3Err(k key.Key, err error) error {
	var notFound interface {
		ErrorCode() string
	}
	var httpErr *smithyhttp.ResponseError
	if errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404 {
		return cos.NewErrNotFound(k.String())
	}
	if errors.As(err, &notFound) {
		switch notFound.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return cos.NewErrNotFound(k.String())
		}
	}
	return cos.WrapInternal(err, "s3: "+k.String())
}
