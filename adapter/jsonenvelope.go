package adapter

import (
	"context"
	"encoding/base64"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// envelope is the on-the-wire shape a JSONEnvelope adapter stores: the
// value base64-encoded alongside a small metadata block, so the stored
// bytes carry their own size/mtime independent of whatever the child
// backend reports for the envelope's own (JSON+base64-inflated) length.
type envelope struct {
	V    string       `json:"v"`
	Meta envelopeMeta `json:"meta"`
}

type envelopeMeta struct {
	Size  uint64  `json:"size"`
	MTime float64 `json:"mtime,omitempty"`
}

// JSONEnvelope wraps/unwraps the value in a `{"v": <base64>, "meta": {...}}`
// envelope, using json-iterator for fast (de)
// serialization. Like Gzip, it never forwards Contains/GetAll/Stat: the
// envelope's on-disk size is not the logical value size.
type JSONEnvelope struct {
	*datastore.Adapter
}

func NewJSONEnvelope(child datastore.Datastore) *JSONEnvelope {
	return &JSONEnvelope{Adapter: datastore.NewAdapter(child)}
}

func (j *JSONEnvelope) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	raw, err := j.Child.GetAll(ctx, k)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := jsonAPI.Unmarshal(raw, &env); err != nil {
		return nil, cos.WrapInternal(err, "json-envelope: decode "+k.String())
	}
	v, err := base64.StdEncoding.DecodeString(env.V)
	if err != nil {
		return nil, cos.WrapInternal(err, "json-envelope: base64 "+k.String())
	}
	meta := dsmeta.Meta{Size: dsmeta.Some(env.Meta.Size)}
	if env.Meta.MTime != 0 {
		meta.MTime = dsmeta.Some(env.Meta.MTime)
	}
	return dsio.NewBytesStream(v, meta), nil
}

func (j *JSONEnvelope) Put(ctx context.Context, k key.Key, v any) error {
	src, err := dsio.RStreamFrom(v)
	if err != nil {
		return err
	}
	raw, err := src.Collect(ctx)
	if err != nil {
		return err
	}
	env := envelope{
		V: base64.StdEncoding.EncodeToString(raw),
		Meta: envelopeMeta{
			Size:  uint64(len(raw)),
			MTime: float64(time.Now().Unix()),
		},
	}
	out, err := jsonAPI.Marshal(env)
	if err != nil {
		return cos.WrapInternal(err, "json-envelope: encode "+k.String())
	}
	return j.Child.Put(ctx, k, out)
}

func (j *JSONEnvelope) Contains(ctx context.Context, k key.Key) (bool, error) {
	s, err := j.Get(ctx, k)
	if err != nil {
		if cos.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	s.Close()
	return true, nil
}

func (j *JSONEnvelope) GetAll(ctx context.Context, k key.Key) ([]byte, error) {
	s, err := j.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	return s.Collect(ctx)
}

func (j *JSONEnvelope) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	s, err := j.Get(ctx, k)
	if err != nil {
		return dsmeta.Meta{}, err
	}
	defer s.Close()
	return s.Meta(), nil
}
