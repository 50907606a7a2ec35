package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/protoreg/am"
	testutil "github.com/teranos/protoreg/internal/testing"
)

// lockedBuffer is written by the watch loop while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchLoop(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, fake := setupProject(t)
	configPath := filepath.Join(cfg.Root, am.ProjectConfigName)

	am.UseConfigFile(configPath)
	t.Cleanup(func() { am.UseConfigFile("") })

	origDebounce := watchDebounce
	watchDebounce = 20 * time.Millisecond
	t.Cleanup(func() { watchDebounce = origDebounce })

	ctx, cancel := context.WithCancel(context.Background())
	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() { done <- watchLoop(ctx, cfg, out) }()

	callsReach := func(n int, msg string) {
		t.Helper()
		require.Eventually(t, func() bool { return len(fake.Calls()) >= n },
			5*time.Second, 10*time.Millisecond, msg)
	}

	callsReach(2, "initial run generates main and test")
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Watching 3 files"))
	}, 5*time.Second, 10*time.Millisecond)

	testutil.WriteDescriptorSet(t, filepath.Join(cfg.Root, "build"), "main.desc",
		testutil.ProtoFile("spine/test/blog.proto", "spine.test", "Foo", "Bar", "Baz"))
	callsReach(3, "descriptor change regenerates main")

	// Point main at a new descriptor set; the watcher must follow it
	other := testutil.WriteDescriptorSet(t, filepath.Join(cfg.Root, "build"), "other.desc",
		testutil.ProtoFile("spine/test/other.proto", "spine.test", "Foo", "Bar"))
	require.NoError(t, os.WriteFile(configPath, []byte(`
[descriptors]
main = "build/other.desc"
test = "build/test.desc"
`), 0o644))
	callsReach(4, "config change regenerates main from the new descriptor")
	assert.Equal(t, other, fake.Calls()[3].Flag("--descriptor"))

	testutil.WriteDescriptorSet(t, filepath.Join(cfg.Root, "build"), "other.desc",
		testutil.ProtoFile("spine/test/other.proto", "spine.test", "Foo", "Bar", "Qux"))
	callsReach(5, "change to the newly configured descriptor is picked up")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop after cancellation")
	}
	assert.Contains(t, out.String(), "Stopped watching")
}
