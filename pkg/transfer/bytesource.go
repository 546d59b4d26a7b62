package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"github.com/norman-ai/norman-sdk-go/pkg/source"
)

// Kind tells which variant a ByteSource holds.
type Kind int

const (
	KindBytes Kind = iota + 1
	KindFile
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindFile:
		return "file"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// ByteSource is the payload of one transfer: an in-memory buffer, a file
// opened for the duration of the transfer, or a reader of known length.
type ByteSource struct {
	kind Kind
	data []byte
	path string
	r    io.Reader
	size int64
}

func Bytes(b []byte) ByteSource {
	return ByteSource{kind: KindBytes, data: b, size: int64(len(b))}
}

func File(path string) ByteSource {
	return ByteSource{kind: KindFile, path: path}
}

// Stream wraps r, which must yield exactly size bytes. If r is an io.Closer
// the transfer closes it.
func Stream(r io.Reader, size int64) ByteSource {
	return ByteSource{kind: KindStream, r: r, size: size}
}

func (b ByteSource) Kind() Kind { return b.kind }

// Open returns a reader over the payload and its exact length. The caller
// must close the reader.
func (b ByteSource) Open() (io.ReadCloser, int64, error) {
	switch b.kind {
	case KindBytes:
		return io.NopCloser(bytes.NewReader(b.data)), b.size, nil
	case KindFile:
		f, err := os.Open(b.path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, 0, fmt.Errorf("%w: %v", errs.ErrNotFound, err)
			}
			return nil, 0, err
		}
		st, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, 0, fmt.Errorf("stat %s: %w", b.path, err)
		}
		if st.IsDir() {
			_ = f.Close()
			return nil, 0, errs.Invalid("%s is a directory", b.path)
		}
		return f, st.Size(), nil
	case KindStream:
		if b.r == nil {
			return nil, 0, errs.Invalid("nil stream")
		}
		if b.size < 0 {
			return nil, 0, errs.Invalid("negative stream length %d", b.size)
		}
		if rc, ok := b.r.(io.ReadCloser); ok {
			return rc, b.size, nil
		}
		return io.NopCloser(b.r), b.size, nil
	default:
		return nil, 0, errs.Invalid("empty byte source")
	}
}

// Close releases a stream source that was never opened. Bytes and file
// sources hold nothing until Open.
func (b ByteSource) Close() error {
	if c, ok := b.r.(io.Closer); ok && b.kind == KindStream {
		return c.Close()
	}
	return nil
}

// FromData turns classified caller data into a ByteSource. Link data has no
// byte source: links are pulled by the platform.
func FromData(ctx context.Context, src model.Source, data any) (ByteSource, error) {
	switch src {
	case model.SourcePrimitive:
		b, err := FromPrimitive(data)
		if err != nil {
			return ByteSource{}, err
		}
		return Bytes(b), nil
	case model.SourceFile:
		switch v := data.(type) {
		case string:
			return File(strings.TrimSpace(v)), nil
		case source.Path:
			return File(string(v)), nil
		case *os.File:
			return FromStream(ctx, v)
		default:
			return ByteSource{}, errs.Invalid("file source needs a path, got %T", data)
		}
	case model.SourceStream:
		return FromStream(ctx, data)
	default:
		return ByteSource{}, fmt.Errorf("%w: %q has no byte source", errs.ErrUnsupportedSource, src)
	}
}

type lenReader interface{ Len() int }

type sizeReader interface{ Size() int64 }

type statReader interface {
	Stat() (fs.FileInfo, error)
}

// FromStream measures a stream so its length is known before allocation.
// Readers exposing Len, Seek, Size or Stat are measured in place; anything
// else, including ChunkStreams, is read into memory first.
func FromStream(ctx context.Context, v any) (ByteSource, error) {
	if source.IsNil(v) {
		return ByteSource{}, errs.Invalid("nil stream")
	}
	switch s := v.(type) {
	case nil:
		return ByteSource{}, errs.Invalid("nil stream")
	case source.ChunkStream:
		b, err := drainChunks(ctx, s)
		if c, ok := s.(io.Closer); ok {
			_ = c.Close()
		}
		if err != nil {
			return ByteSource{}, err
		}
		return Bytes(b), nil
	case lenReader:
		if r, ok := v.(io.Reader); ok {
			return Stream(r, int64(s.Len())), nil
		}
	}

	r, ok := v.(io.Reader)
	if !ok {
		return ByteSource{}, errs.Invalid("stream source needs an io.Reader, got %T", v)
	}
	if seeker, ok := r.(io.Seeker); ok {
		if n, err := remaining(seeker); err == nil {
			return Stream(r, n), nil
		}
	}
	if s, ok := r.(sizeReader); ok {
		return Stream(r, s.Size()), nil
	}
	if s, ok := r.(statReader); ok {
		if st, err := s.Stat(); err == nil && st.Mode().IsRegular() {
			return Stream(r, st.Size()), nil
		}
	}

	// length unknown: spool
	b, err := io.ReadAll(ctxReader{ctx: ctx, r: r})
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
	if err != nil {
		return ByteSource{}, fmt.Errorf("spool stream: %w", err)
	}
	return Bytes(b), nil
}

func remaining(s io.Seeker) (int64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end - cur, nil
}

func drainChunks(ctx context.Context, s source.ChunkStream) ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, err := s.Next(ctx)
		buf.Write(chunk)
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("read chunk: %w", err)
		}
	}
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
