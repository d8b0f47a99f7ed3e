package backend

import (
	"bytes"
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
	"github.com/aistore-oss/dstore/query"
)

// AzureBackend wraps azblob behind the datastore contract, building a
// per-call block-blob client from the shared container client.
type AzureBackend struct {
	containerClient *container.Client
}

// NewAzure builds the backend's Datastore-facing handle over a pre-built
// container client; the caller assembles the shared-key credential.
func NewAzure(containerClient *container.Client) *datastore.Base {
	return datastore.NewBase(&AzureBackend{containerClient: containerClient})
}

func (a *AzureBackend) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	blob := a.containerClient.NewBlockBlobClient(objectName(k))
	resp, err := blob.DownloadStream(ctx, nil)
	if err != nil {
		return nil, azureErr(k, err)
	}
	meta := dsmeta.Meta{}
	if resp.ContentLength != nil {
		meta.Size = dsmeta.Some(uint64(*resp.ContentLength))
	}
	if resp.LastModified != nil {
		meta.MTime = dsmeta.Some(float64(resp.LastModified.Unix()))
	}
	return newReaderStream(resp.Body, meta), nil
}

func (a *AzureBackend) PutStream(ctx context.Context, k key.Key, v dsio.RStream) error {
	b, err := v.Collect(ctx)
	if err != nil {
		return err
	}
	blob := a.containerClient.NewBlockBlobClient(objectName(k))
	_, err = blob.UploadStream(ctx, bytes.NewReader(b), nil)
	if err != nil {
		return azureErr(k, err)
	}
	return nil
}

func (a *AzureBackend) Delete(ctx context.Context, k key.Key) error {
	blob := a.containerClient.NewBlockBlobClient(objectName(k))
	_, err := blob.Delete(ctx, nil)
	if err != nil {
		return azureErr(k, err)
	}
	return nil
}

func (a *AzureBackend) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	blob := a.containerClient.NewBlockBlobClient(objectName(k))
	props, err := blob.GetProperties(ctx, nil)
	if err != nil {
		return dsmeta.Meta{}, azureErr(k, err)
	}
	m := dsmeta.Meta{}
	if props.ContentLength != nil {
		m.Size = dsmeta.Some(uint64(*props.ContentLength))
	}
	if props.LastModified != nil {
		m.MTime = dsmeta.Some(float64(props.LastModified.Unix()))
	}
	return m, nil
}

func (a *AzureBackend) Contains(ctx context.Context, k key.Key) (bool, error) {
	_, err := a.Stat(ctx, k)
	if err != nil {
		if cos.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *AzureBackend) Close() error { return nil }

func (a *AzureBackend) Query(context.Context, query.Query) (query.Cursor, error) {
	return query.NewSliceCursor(nil), nil
}

func azureErr(k key.Key, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return cos.NewErrNotFound(k.String())
	}
	var stgErr *azcore.ResponseError
	if errors.As(err, &stgErr) && stgErr.StatusCode == 404 {
		return cos.NewErrNotFound(k.String())
	}
	return cos.WrapInternal(err, "azure: "+k.String())
}
