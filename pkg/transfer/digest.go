package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
)

// Digest accumulates the checksum of the bytes written to it.
type Digest interface {
	Write(p []byte) (int, error)
	// Sum returns the textual checksum sent when finalizing a transfer.
	Sum() string
	Name() string
}

// DigestFunc creates a fresh digest per transfer.
type DigestFunc func() Digest

const (
	DigestSHA256 = "sha256"
	DigestCID    = "cid"
)

type sha256Digest struct{ h hash.Hash }

// NewSHA256 returns a digest producing lowercase hex SHA-256.
func NewSHA256() Digest { return &sha256Digest{h: sha256.New()} }

func (d *sha256Digest) Write(p []byte) (int, error) { return d.h.Write(p) }
func (d *sha256Digest) Sum() string                 { return hex.EncodeToString(d.h.Sum(nil)) }
func (d *sha256Digest) Name() string                { return DigestSHA256 }

type cidDigest struct{ h hash.Hash }

// NewCID returns a digest producing a CIDv1 (raw codec, sha2-256) string,
// the content address the bytes would have in an IPFS store.
func NewCID() Digest { return &cidDigest{h: sha256.New()} }

func (d *cidDigest) Write(p []byte) (int, error) { return d.h.Write(p) }
func (d *cidDigest) Name() string                { return DigestCID }

func (d *cidDigest) Sum() string {
	mh, err := multihash.Encode(d.h.Sum(nil), multihash.SHA2_256)
	if err != nil {
		// sha2-256 is always a registered code with a 32-byte digest
		panic(err)
	}
	return cid.NewCidV1(cid.Raw, mh).String()
}

// DigestByName maps a configured digest name to its constructor.
func DigestByName(name string) (DigestFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DigestSHA256:
		return NewSHA256, nil
	case DigestCID:
		return NewCID, nil
	default:
		return nil, fmt.Errorf("%w: unknown digest %q", errs.ErrInvalidArgument, name)
	}
}
