// Package modality maps declared data encodings to coarse data categories.
//
// Two tables are kept apart on purpose: Signature covers container-level
// formats declared on model inputs and outputs (mp4, wav), Parameter covers
// frame- and value-level encodings declared on forward-function parameters
// (h264, pcm, f32). Their vocabularies overlap but are not the same.
package modality

import (
	"maps"
	"slices"
	"strings"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
)

// Table is an immutable lookup from normalized encoding token to modality.
type Table struct {
	name    string
	entries map[string]model.Modality
}

// NewTable builds a table. Keys are normalized the same way lookups are.
func NewTable(name string, entries map[string]model.Modality) *Table {
	t := &Table{name: name, entries: make(map[string]model.Modality, len(entries))}
	for k, v := range entries {
		t.entries[normalize(k)] = v
	}
	return t
}

func normalize(encoding string) string {
	return strings.ToLower(strings.TrimSpace(encoding))
}

// Resolve returns the modality of encoding. Lookup ignores case and
// surrounding whitespace; unknown or empty encodings fail with
// errs.ErrInvalidArgument naming the token.
func (t *Table) Resolve(encoding string) (model.Modality, error) {
	key := normalize(encoding)
	if key == "" {
		return "", errs.Invalid("empty %s encoding", t.name)
	}
	m, ok := t.entries[key]
	if !ok {
		return "", errs.Invalid("unknown %s encoding %q", t.name, key)
	}
	return m, nil
}

// With returns a copy of t extended (or overridden) by extra.
func (t *Table) With(extra map[string]model.Modality) *Table {
	merged := maps.Clone(t.entries)
	for k, v := range extra {
		merged[normalize(k)] = v
	}
	return &Table{name: t.name, entries: merged}
}

// Encodings lists the known tokens in sorted order.
func (t *Table) Encodings() []string {
	return slices.Sorted(maps.Keys(t.entries))
}

func (t *Table) Name() string { return t.name }

// Signature resolves encodings declared on model signatures.
var Signature = NewTable("signature", map[string]model.Modality{
	"aac": model.ModalityAudio,
	"mp3": model.ModalityAudio,
	"wav": model.ModalityAudio,

	"jpg":  model.ModalityImage,
	"jpeg": model.ModalityImage,
	"png":  model.ModalityImage,

	"txt":    model.ModalityText,
	"utf-8":  model.ModalityText,
	"utf-16": model.ModalityText,

	"avi": model.ModalityVideo,
	"mp4": model.ModalityVideo,
})

// Parameter resolves encodings declared on signature parameters.
var Parameter = NewTable("parameter", map[string]model.Modality{
	"aac": model.ModalityAudio,
	"mp3": model.ModalityAudio,
	"wav": model.ModalityAudio,
	"pcm": model.ModalityAudio,

	"jpg":  model.ModalityImage,
	"jpeg": model.ModalityImage,
	"png":  model.ModalityImage,

	"utf-8":  model.ModalityText,
	"utf-16": model.ModalityText,

	"h264":    model.ModalityVideo,
	"h265":    model.ModalityVideo,
	"libx264": model.ModalityVideo,
	"rgb24":   model.ModalityVideo,
	"x264":    model.ModalityVideo,
	"yuv420p": model.ModalityVideo,

	"double": model.ModalityFloat,
	"f16":    model.ModalityFloat,
	"f32":    model.ModalityFloat,
	"f64":    model.ModalityFloat,
	"float":  model.ModalityFloat,

	"int":  model.ModalityInteger,
	"uint": model.ModalityInteger,

	"bin":          model.ModalityFile,
	"binary":       model.ModalityFile,
	"octet-stream": model.ModalityFile,
})
