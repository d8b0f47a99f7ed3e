package backend

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
)

// objectName strips a key's leading "/" for providers whose object names
// are not themselves rooted paths (S3, Azure, GCS, HDFS all address objects
// this way).
func objectName(k key.Key) string { return k.String()[1:] }

// readerStream is the RStream every cloud backend's Get returns: a thin
// wrapper over the provider SDK's response body plus the metadata header
// the backend already extracted from the response (ContentLength,
// LastModified, ...), so that information isn't lost going through the
// generic five-shape normalizer (which only derives Size from an io.Reader
// that also satisfies Len()).
type readerStream struct {
	mu     sync.Mutex
	r      io.Reader
	closer io.Closer
	meta   dsmeta.Meta
	closed bool
	atEnd  bool
}

func newReaderStream(r io.Reader, meta dsmeta.Meta) *readerStream {
	rc, _ := r.(io.Closer)
	return &readerStream{r: r, closer: rc, meta: meta}
}

func (s *readerStream) Meta() dsmeta.Meta { return s.meta }

func (s *readerStream) ReceiveSome(_ context.Context, max int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, cos.ErrClosedResource
	}
	if s.atEnd {
		return nil, nil
	}
	if max <= 0 {
		max = 32 * 1024
	}
	buf := make([]byte, max)
	n, err := s.r.Read(buf)
	if n > 0 {
		if err == io.EOF {
			err = nil
		}
		return buf[:n], err
	}
	if err == io.EOF || err == nil {
		s.atEnd = true
		return nil, nil
	}
	return nil, err
}

func (s *readerStream) Collect(ctx context.Context) ([]byte, error) {
	defer s.Close()
	var out []byte
	for {
		chunk, err := s.ReceiveSome(ctx, 32*1024)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return out, nil
		}
		out = append(out, chunk...)
	}
}

func (s *readerStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func newBytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }
