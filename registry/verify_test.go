package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegistry = `// Generated. Do not edit.
import 'package:protobuf/protobuf.dart';
import 'package:spine_client/known_types.dart';
import './spine/test/blog.pb.dart' as blog;

final Map<String, BuilderInfo> types = {
  'type.spine.io/spine.test.Foo': blog.Foo.getDefault().info_,
  'type.spine.io/spine.test.Bar': blog.Bar.getDefault().info_,
};
`

func TestVerify(t *testing.T) {
	expected := []string{"spine.test.Bar", "spine.test.Foo"}

	t.Run("exact coverage", func(t *testing.T) {
		r := Verify([]byte(sampleRegistry), expected)
		assert.True(t, r.OK(), "%+v", r)
		assert.NoError(t, r.Err())
		assert.Equal(t, 2, r.Keys)
	})

	t.Run("bare names count as keys", func(t *testing.T) {
		r := Verify([]byte(`{"spine.test.Foo": f, "spine.test.Bar": b}`), expected)
		assert.True(t, r.OK(), "%+v", r)
	})

	t.Run("missing", func(t *testing.T) {
		r := Verify([]byte(`{'type.spine.io/spine.test.Foo': f}`), expected)
		assert.Equal(t, []string{"spine.test.Bar"}, r.Missing)
		require.Error(t, r.Err())
		assert.Contains(t, r.Err().Error(), "1 missing type: spine.test.Bar")
	})

	t.Run("duplicates", func(t *testing.T) {
		artifact := `{'type.spine.io/spine.test.Foo': f, 'type.spine.io/spine.test.Foo': g, 'spine.test.Bar': b}`
		r := Verify([]byte(artifact), expected)
		assert.Equal(t, []string{"spine.test.Foo"}, r.Duplicates)
		assert.Empty(t, r.Missing)
		assert.False(t, r.OK())
	})

	t.Run("unexpected type url", func(t *testing.T) {
		artifact := sampleRegistry + `var extra = {'type.spine.io/spine.test.Baz': z};`
		r := Verify([]byte(artifact), expected)
		assert.Equal(t, []string{"spine.test.Baz"}, r.Unexpected)
	})

	t.Run("values of forward and reverse maps are not keys", func(t *testing.T) {
		artifact := sampleRegistry + `
final Map<GeneratedMessage, String> typeUrls = {
  blog.Foo.getDefault(): 'type.spine.io/spine.test.Foo',
  blog.Bar.getDefault(): 'type.spine.io/spine.test.Bar'
};
`
		r := Verify([]byte(artifact), expected)
		assert.True(t, r.OK(), "%+v", r)
		assert.Empty(t, r.Duplicates)
		assert.Equal(t, 2, r.Keys)
	})

	t.Run("whitespace before the colon", func(t *testing.T) {
		artifact := "{\n  'spine.test.Foo' : f,\n  \"type.spine.io/spine.test.Bar\"\n    : b,\n}"
		r := Verify([]byte(artifact), expected)
		assert.True(t, r.OK(), "%+v", r)
		assert.Equal(t, 2, r.Keys)
	})

	t.Run("conditional operands and scoped names are not keys", func(t *testing.T) {
		artifact := sampleRegistry + `
String pick(bool a) => a ? 'type.spine.io/spine.test.Foo' : 'type.spine.io/spine.test.Bar';
const label = "spine.test.Bar"::name;
`
		r := Verify([]byte(artifact), expected)
		assert.True(t, r.OK(), "%+v", r)
		assert.Equal(t, 2, r.Keys)
	})

	t.Run("imports are not keys", func(t *testing.T) {
		r := Verify([]byte(`import 'package:a/b.dart'; import './c/d.pb.dart'; import 'lib/e.pb.dart';`), nil)
		assert.True(t, r.OK(), "%+v", r)
		assert.Zero(t, r.Keys)
	})
}

func TestVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.dart")
	require.NoError(t, os.WriteFile(path, []byte(sampleRegistry), 0o644))

	r, err := VerifyFile(path, []string{"spine.test.Foo", "spine.test.Bar"})
	require.NoError(t, err)
	assert.True(t, r.OK())

	_, err = VerifyFile(filepath.Join(t.TempDir(), "none.dart"), nil)
	assert.Error(t, err)
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	require.NoError(t, os.WriteFile(a, []byte("registry"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("registry"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("registry\n"), 0o644))

	same, err := CompareFiles(a, b)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = CompareFiles(a, c)
	require.NoError(t, err)
	assert.False(t, same)

	same, err = CompareFiles(a, filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.False(t, same)

	_, err = CompareFiles(filepath.Join(dir, "absent"), a)
	assert.Error(t, err)
}
