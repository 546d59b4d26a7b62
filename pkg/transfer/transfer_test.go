package transfer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"github.com/norman-ai/norman-sdk-go/pkg/source"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memChannel struct {
	id       string
	buf      bytes.Buffer
	writes   int
	closed   bool
	aborted  bool
	closeErr error
	writeErr error
}

func (c *memChannel) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes++
	return c.buf.Write(p)
}
func (c *memChannel) Close() error      { c.closed = true; return c.closeErr }
func (c *memChannel) PairingID() string { return c.id }
func (c *memChannel) Abort()            { c.aborted = true }

type memTransport struct {
	mu          sync.Mutex
	pairings    []model.PairingRequest
	checksums   []model.ChecksumRequest
	channel     *memChannel
	allocateErr error
	finalizeErr error
	tokens      []string
}

func (m *memTransport) Allocate(_ context.Context, token string, req model.PairingRequest) (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	m.pairings = append(m.pairings, req)
	if m.allocateErr != nil {
		return nil, m.allocateErr
	}
	if m.channel == nil {
		m.channel = &memChannel{id: "pair-1"}
	}
	return m.channel, nil
}

func (m *memTransport) Finalize(_ context.Context, _ string, req model.ChecksumRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checksums = append(m.checksums, req)
	return m.finalizeErr
}

type trackingReader struct {
	io.Reader
	closed bool
}

func (t *trackingReader) Close() error { t.closed = true; return nil }

func sha(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

func assetRequest() model.PairingRequest {
	return model.PairingRequest{EntityRefs: model.AssetRefs(model.ModelAsset{ID: "a1", AccountID: "acc", ModelID: "m1", AssetName: model.AssetFile})}
}

func TestTransferFileDeclaresSizeAndDigestsBytes(t *testing.T) {
	content := bytes.Repeat([]byte("norman"), 1000)
	path := filepath.Join(t.TempDir(), "weights.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	tr := &memTransport{}
	s := NewSession(tr, WithChunkSize(1024))
	require.NoError(t, s.Transfer(context.Background(), "tok", assetRequest(), File(path)))

	require.Len(t, tr.pairings, 1)
	assert.Equal(t, int64(len(content)), tr.pairings[0].FileSizeInBytes)
	assert.Equal(t, "a1", tr.pairings[0].AssetID)
	assert.Equal(t, []string{"tok"}, tr.tokens)
	assert.Equal(t, content, tr.channel.buf.Bytes())
	assert.Equal(t, 6, tr.channel.writes, "6000 bytes in 1024-byte chunks")
	assert.True(t, tr.channel.closed)
	require.Len(t, tr.checksums, 1)
	assert.Equal(t, model.ChecksumRequest{PairingID: "pair-1", Checksum: sha(content)}, tr.checksums[0])
}

func TestTransferCIDDigest(t *testing.T) {
	tr := &memTransport{}
	s := NewSession(tr, WithDigest(NewCID))
	require.NoError(t, s.Transfer(context.Background(), "tok", assetRequest(), Bytes([]byte("hello"))))

	c, err := cid.Decode(tr.checksums[0].Checksum)
	require.NoError(t, err)
	assert.Equal(t, uint64(cid.Raw), c.Type())
	assert.Equal(t, uint64(1), c.Version())
}

func TestTransferStreamIsClosed(t *testing.T) {
	r := &trackingReader{Reader: strings.NewReader("abc")}
	tr := &memTransport{}
	require.NoError(t, NewSession(tr).Transfer(context.Background(), "tok", assetRequest(), Stream(r, 3)))
	assert.True(t, r.closed)
	assert.Equal(t, "abc", tr.channel.buf.String())
}

func TestTransferFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		tr       *memTransport
		src      func() (ByteSource, *trackingReader)
		wantIs   error
		aborted  bool
		finalize int
	}{
		{
			name: "allocate",
			tr:   &memTransport{allocateErr: boom},
			src: func() (ByteSource, *trackingReader) {
				r := &trackingReader{Reader: strings.NewReader("abc")}
				return Stream(r, 3), r
			},
			wantIs: boom,
		},
		{
			name: "write",
			tr:   &memTransport{channel: &memChannel{id: "p", writeErr: boom}},
			src: func() (ByteSource, *trackingReader) {
				r := &trackingReader{Reader: strings.NewReader("abc")}
				return Stream(r, 3), r
			},
			wantIs:  boom,
			aborted: true,
		},
		{
			name: "short stream",
			tr:   &memTransport{},
			src: func() (ByteSource, *trackingReader) {
				r := &trackingReader{Reader: strings.NewReader("ab")}
				return Stream(r, 3), r
			},
			aborted: true,
		},
		{
			name: "close",
			tr:   &memTransport{channel: &memChannel{id: "p", closeErr: boom}},
			src: func() (ByteSource, *trackingReader) {
				r := &trackingReader{Reader: strings.NewReader("abc")}
				return Stream(r, 3), r
			},
			wantIs: boom,
		},
		{
			name: "finalize",
			tr:   &memTransport{finalizeErr: boom},
			src: func() (ByteSource, *trackingReader) {
				r := &trackingReader{Reader: strings.NewReader("abc")}
				return Stream(r, 3), r
			},
			wantIs:   boom,
			finalize: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, r := tt.src()
			err := NewSession(tt.tr).Transfer(context.Background(), "tok", assetRequest(), src)
			require.ErrorIs(t, err, errs.ErrTransferFailed)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.True(t, r.closed, "source closed on failure")
			if tt.tr.channel != nil {
				assert.Equal(t, tt.aborted, tt.tr.channel.aborted)
			}
			assert.Len(t, tt.tr.checksums, tt.finalize)
		})
	}
}

func TestTransferMissingFile(t *testing.T) {
	tr := &memTransport{}
	err := NewSession(tr).Transfer(context.Background(), "tok", assetRequest(), File(filepath.Join(t.TempDir(), "nope")))
	require.ErrorIs(t, err, errs.ErrTransferFailed)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Empty(t, tr.pairings, "nothing allocated")
}

func TestTransferCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &memTransport{}
	err := NewSession(tr).Transfer(ctx, "tok", assetRequest(), Bytes([]byte("abc")))
	require.ErrorIs(t, err, errs.ErrTransferFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromPrimitive(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"text", "héllo", "héllo"},
		{"bytes", []byte{0x01, 0x02}, "\x01\x02"},
		{"raw json", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"bool", true, "true"},
		{"int", -42, "-42"},
		{"int8", int8(7), "7"},
		{"uint64 max", uint64(math.MaxUint64), "18446744073709551615"},
		{"float", 3.25, "3.25"},
		{"float integral", 2.0, "2"},
		{"small float", 0.000001, "0.000001"},
		{"float32", float32(0.5), "0.5"},
		{"json number", json.Number("1e3"), "1000"},
		{"decimal", decimal.RequireFromString("10.50"), "10.5"},
		{"map", map[string]any{"b": 2, "a": []int{1}}, `{"a":[1],"b":2}`},
		{"slice", []string{"x", "y"}, `["x","y"]`},
		{"struct", struct {
			Name string `json:"name"`
		}{"n"}, `{"name":"n"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromPrimitive(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestFromPrimitiveRejects(t *testing.T) {
	for _, in := range []any{nil, math.NaN(), math.Inf(1), float32(math.Inf(-1)), make(chan int), json.Number("abc")} {
		_, err := FromPrimitive(in)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument, "%T", in)
	}
}

type pipeOnly struct{ r io.Reader }

func (p pipeOnly) Read(b []byte) (int, error) { return p.r.Read(b) }

type sized struct {
	io.Reader
	n int64
}

func (s sized) Size() int64 { return s.n }

type chunked struct{ parts []string }

func (c *chunked) Next(context.Context) ([]byte, error) {
	if len(c.parts) == 0 {
		return nil, io.EOF
	}
	p := c.parts[0]
	c.parts = c.parts[1:]
	return []byte(p), nil
}

func TestFromStreamMeasuresLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Seek(4, io.SeekStart)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   any
		kind Kind
		size int64
	}{
		{"strings reader", strings.NewReader("abcd"), KindStream, 4},
		{"buffer", bytes.NewBufferString("abc"), KindStream, 3},
		{"seeked file", f, KindStream, 6},
		{"sized", sized{Reader: strings.NewReader("ab"), n: 2}, KindStream, 2},
		{"unknown length is spooled", pipeOnly{r: strings.NewReader("hello")}, KindBytes, 5},
		{"chunk stream is spooled", &chunked{parts: []string{"ab", "cd", "e"}}, KindBytes, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs, err := FromStream(context.Background(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, bs.Kind())
			rc, n, err := bs.Open()
			require.NoError(t, err)
			assert.Equal(t, tt.size, n)
			body, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Len(t, body, int(tt.size))
		})
	}
}

func TestFromStreamRejectsNilPointers(t *testing.T) {
	for _, in := range []any{nil, (*bytes.Buffer)(nil), (*strings.Reader)(nil), (*chunked)(nil)} {
		_, err := FromStream(context.Background(), in)
		require.ErrorIs(t, err, errs.ErrInvalidArgument, "input %T", in)
	}
}

func TestFromData(t *testing.T) {
	ctx := context.Background()

	bs, err := FromData(ctx, model.SourcePrimitive, 12)
	require.NoError(t, err)
	assert.Equal(t, KindBytes, bs.Kind())

	bs, err = FromData(ctx, model.SourceFile, " /tmp/x ")
	require.NoError(t, err)
	assert.Equal(t, KindFile, bs.Kind())
	assert.Equal(t, "/tmp/x", bs.path)

	bs, err = FromData(ctx, model.SourceFile, source.Path("/tmp/y"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/y", bs.path)

	_, err = FromData(ctx, model.SourceFile, 12)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	bs, err = FromData(ctx, model.SourceStream, strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, KindStream, bs.Kind())

	_, err = FromData(ctx, model.SourceStream, 12)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = FromData(ctx, model.SourceLink, "https://example.com")
	assert.ErrorIs(t, err, errs.ErrUnsupportedSource)
}

func TestDigestByName(t *testing.T) {
	for name, want := range map[string]string{"": DigestSHA256, "SHA256": DigestSHA256, "cid": DigestCID} {
		f, err := DigestByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, f().Name())
	}
	_, err := DigestByName("md5")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestSHA256Digest(t *testing.T) {
	d := NewSHA256()
	_, _ = d.Write([]byte("ab"))
	_, _ = d.Write([]byte("c"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", d.Sum())
}
