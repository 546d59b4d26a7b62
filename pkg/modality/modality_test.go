package modality

import (
	"testing"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureTable(t *testing.T) {
	tests := map[string]model.Modality{
		"mp4":    model.ModalityVideo,
		" MP4 ":  model.ModalityVideo,
		"Wav":    model.ModalityAudio,
		"UTF-8":  model.ModalityText,
		"txt":    model.ModalityText,
		"jpeg\t": model.ModalityImage,
	}
	for in, want := range tests {
		got, err := Signature.Resolve(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParameterTable(t *testing.T) {
	tests := map[string]model.Modality{
		"h264":    model.ModalityVideo,
		"YUV420P": model.ModalityVideo,
		"pcm":     model.ModalityAudio,
		"f32":     model.ModalityFloat,
		"uint":    model.ModalityInteger,
		"binary":  model.ModalityFile,
	}
	for in, want := range tests {
		got, err := Parameter.Resolve(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestTablesDiverge(t *testing.T) {
	_, err := Signature.Resolve("h264")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument, "frame codec is not a container format")

	_, err = Parameter.Resolve("mp4")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument, "container format is not a parameter encoding")
}

func TestResolveIsCaseAndSpaceInsensitive(t *testing.T) {
	for _, table := range []*Table{Signature, Parameter} {
		for _, enc := range table.Encodings() {
			plain, err := table.Resolve(enc)
			require.NoError(t, err)
			padded, err := table.Resolve("  " + enc + " ")
			require.NoError(t, err)
			assert.Equal(t, plain, padded, enc)
		}
	}
}

func TestUnknownEncoding(t *testing.T) {
	_, err := Signature.Resolve(" Klingon ")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	assert.Contains(t, err.Error(), `"klingon"`)

	_, err = Parameter.Resolve("   ")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestWithDoesNotMutate(t *testing.T) {
	ext := Signature.With(map[string]model.Modality{"FLAC": model.ModalityAudio})

	got, err := ext.Resolve("flac")
	require.NoError(t, err)
	assert.Equal(t, model.ModalityAudio, got)
	assert.Equal(t, "signature", ext.Name())

	_, err = Signature.Resolve("flac")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}
