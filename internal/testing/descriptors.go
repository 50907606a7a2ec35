package testing

import (
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ProtoFile builds a minimal proto3 file descriptor declaring the given
// top-level messages in pkg.
func ProtoFile(name, pkg string, messages ...string) *descriptorpb.FileDescriptorProto {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(name),
		Package: proto.String(pkg),
		Syntax:  proto.String("proto3"),
	}
	for _, m := range messages {
		fd.MessageType = append(fd.MessageType, &descriptorpb.DescriptorProto{Name: proto.String(m)})
	}
	return fd
}

// WriteDescriptorSet serializes files as a FileDescriptorSet under dir and
// returns its path.
func WriteDescriptorSet(t *testing.T, dir, name string, files ...*descriptorpb.FileDescriptorProto) string {
	t.Helper()

	data, err := proto.Marshal(&descriptorpb.FileDescriptorSet{File: files})
	if err != nil {
		t.Fatalf("Failed to marshal descriptor set: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create descriptor dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write descriptor set: %v", err)
	}
	return path
}

// TouchExecutable creates an empty executable file at path.
func TouchExecutable(t *testing.T, path string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create executable dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("Failed to write executable: %v", err)
	}
	return path
}
