package descriptor

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/teranos/protoreg/errors"
)

// Load parses the descriptor set at path.
func Load(path string) (*descriptorpb.FileDescriptorSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read descriptor set %s", path)
	}
	var fds descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &fds); err != nil {
		return nil, errors.Wrapf(err, "failed to parse descriptor set %s", path)
	}
	return &fds, nil
}

// TypeNames returns the fully-qualified names of every message and enum in
// the set, nested types included, sorted and unique. Synthetic map entry
// messages are skipped: generators emit no class for them.
//
// The set must be closed over its imports; a set compiled without
// --include_imports fails here rather than yielding a partial registry.
func TypeNames(fds *descriptorpb.FileDescriptorSet) ([]string, error) {
	files, err := protodesc.NewFiles(fds)
	if err != nil {
		return nil, errors.Wrap(err, "descriptor set is not self-contained")
	}

	seen := make(map[string]struct{})
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		collectEnums(fd.Enums(), seen)
		collectMessages(fd.Messages(), seen)
		return true
	})

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// TypeNamesFromFile is Load followed by TypeNames.
func TypeNamesFromFile(path string) ([]string, error) {
	fds, err := Load(path)
	if err != nil {
		return nil, err
	}
	return TypeNames(fds)
}

func collectMessages(msgs protoreflect.MessageDescriptors, seen map[string]struct{}) {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		seen[string(md.FullName())] = struct{}{}
		collectEnums(md.Enums(), seen)
		collectMessages(md.Messages(), seen)
	}
}

func collectEnums(enums protoreflect.EnumDescriptors, seen map[string]struct{}) {
	for i := 0; i < enums.Len(); i++ {
		seen[string(enums.Get(i).FullName())] = struct{}{}
	}
}

// Digest returns the hex sha256 of the file at path.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "failed to hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
