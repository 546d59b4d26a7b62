// Package source decides how the bytes of a caller-supplied value are
// obtained: as a serialized primitive, a local file, a link the platform
// pulls itself, or a stream read by the SDK.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"reflect"
	"strings"
	"syscall"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
)

// Path marks a value as a filesystem path. Unlike a plain string it is never
// taken for a link or a primitive: it must exist.
type Path string

// ChunkStream is a pull stream of byte chunks. Next returns io.EOF once the
// stream is exhausted.
type ChunkStream interface {
	Next(ctx context.Context) ([]byte, error)
}

// Classify returns the source of data. The first matching rule wins:
//
//	nil, or a nil pointer       -> ErrInvalidArgument
//	Path                        -> File if it exists, ErrNotFound otherwise
//	ChunkStream                 -> Stream
//	io.Reader                   -> Stream
//	string, trimmed:
//	  absolute http(s) URL      -> Link
//	  existing path             -> File
//	  contains a path separator -> ErrNotFound
//	  otherwise                 -> Primitive
//	anything else               -> Primitive
//
// The result reflects the filesystem at call time only.
func Classify(data any) (model.Source, error) {
	if IsNil(data) {
		return "", errs.Invalid("data is nil")
	}
	switch v := data.(type) {
	case nil:
		return "", errs.Invalid("data is nil")
	case Path:
		ok, err := exists(string(v))
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: path %q", errs.ErrNotFound, string(v))
		}
		return model.SourceFile, nil
	case *Path:
		return Classify(*v)
	case ChunkStream:
		return model.SourceStream, nil
	case io.Reader:
		return model.SourceStream, nil
	case string:
		return classifyText(v)
	default:
		return model.SourcePrimitive, nil
	}
}

func classifyText(s string) (model.Source, error) {
	trimmed := strings.TrimSpace(s)
	if IsLink(trimmed) {
		return model.SourceLink, nil
	}
	if trimmed == "" {
		return model.SourcePrimitive, nil
	}
	ok, err := exists(trimmed)
	if err != nil {
		return "", err
	}
	if ok {
		return model.SourceFile, nil
	}
	if strings.ContainsRune(trimmed, '/') || strings.ContainsRune(trimmed, os.PathSeparator) {
		return "", fmt.Errorf("%w: path %q", errs.ErrNotFound, trimmed)
	}
	return model.SourcePrimitive, nil
}

// IsNil reports whether data is nil or a typed nil pointer, channel or
// func hidden in an interface.
func IsNil(data any) bool {
	if data == nil {
		return true
	}
	switch rv := reflect.ValueOf(data); rv.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// IsLink reports whether s is an absolute http or https URL with a host.
func IsLink(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Resolve returns declared when set and the classified source otherwise.
// Nil data is rejected either way.
func Resolve(data any, declared model.Source) (model.Source, error) {
	if IsNil(data) {
		return "", errs.Invalid("data is nil")
	}
	if declared != "" {
		if _, err := model.ParseSource(string(declared)); err != nil {
			return "", fmt.Errorf("%w: %v", errs.ErrUnsupportedSource, err)
		}
		return declared, nil
	}
	return Classify(data)
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case isNameError(err):
		// names the OS rejects outright are not paths
		return false, nil
	default:
		return false, fmt.Errorf("stat %q: %w", path, err)
	}
}

func isNameError(err error) bool {
	return errors.Is(err, syscall.ENAMETOOLONG) || errors.Is(err, syscall.ENOTDIR) || errors.Is(err, syscall.EINVAL)
}
