package grpc

import (
	"context"
	_ "embed"
	"fmt"
	"maps"
	"slices"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/linker"
	"go.uber.org/zap"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// FilePushProtoName is the file name under which FilePushProto is compiled.
const FilePushProtoName = "norman/filepush.proto"

// FilePushProto is the source of the push transport service definition. It
// is compiled into every Client.
//
//go:embed filepush.proto
var FilePushProto string

// FindMethod searches the compiled files for a method with the given simple
// name and returns the file and method descriptors of the first match.
func FindMethod(files linker.Files, methodName string) (protoreflect.FileDescriptor, protoreflect.MethodDescriptor, error) {
	for _, file := range files {
		for i := 0; i < file.Services().Len(); i++ {
			service := file.Services().Get(i)
			method := service.Methods().ByName(protoreflect.Name(methodName))
			if method != nil {
				return file, method, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("method %s not found in provided proto files", methodName)
}

// FullMethodName builds "/<package>.<Service>/<Method>".
func FullMethodName(fd protoreflect.FileDescriptor, md protoreflect.MethodDescriptor) string {
	return "/" + string(fd.Package()) + "." + string(md.Parent().Name()) + "/" + string(md.Name())
}

// getProtoDescriptors compiles the provided sources (filename → content)
// together with the embedded filepush.proto. The input map is not modified.
func getProtoDescriptors(protoFiles map[string]string) (linker.Files, error) {
	sources := maps.Clone(protoFiles)
	if sources == nil {
		sources = map[string]string{}
	}
	sources[FilePushProtoName] = FilePushProto

	accessor := protocompile.SourceAccessorFromMap(sources)
	r := protocompile.WithStandardImports(&protocompile.SourceResolver{Accessor: accessor})
	compiler := protocompile.Compiler{
		Resolver:       r,
		SourceInfoMode: protocompile.SourceInfoStandard,
	}
	names := slices.Sorted(maps.Keys(sources))
	fds, err := compiler.Compile(context.Background(), names...)
	if err != nil || fds == nil {
		zap.L().Error("failed to compile proto files", zap.Error(err))
		return nil, fmt.Errorf("failed to compile proto files: %w", err)
	}
	return fds, nil
}
