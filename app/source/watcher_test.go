package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type change struct {
	name    string
	removed bool
}

func newTestWatcher(t *testing.T) (*Watcher, *ConfigCache, *[]change) {
	t.Helper()

	cache := NewConfigCache(t.TempDir())
	var changes []change

	w, err := NewWatcher(cache, func(name string, config *Config) {
		changes = append(changes, change{name: name, removed: config == nil})
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	return w, cache, &changes
}

func TestWatcherHandleEvent(t *testing.T) {
	w, cache, changes := newTestWatcher(t)
	path := filepath.Join(cache.Dir(), "fia.yml")

	require.NoError(t, os.WriteFile(path, []byte("url: \"https://www.fia.com/documents\"\n"), 0644))
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Create})

	config, err := cache.GetConfig("fia")
	require.NoError(t, err)
	assert.Equal(t, "https://www.fia.com", config.Origin)

	require.NoError(t, os.WriteFile(path, []byte("url: \"https://www.fia.com/documents\"\nmode: link\n"), 0644))
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})

	config, err = cache.GetConfig("fia")
	require.NoError(t, err)
	assert.Equal(t, ModeLink, config.Mode)

	require.NoError(t, os.Remove(path))
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Remove})

	_, err = cache.GetConfig("fia")
	assert.Error(t, err)

	assert.Equal(t, []change{{"fia", false}, {"fia", false}, {"fia", true}}, *changes)
}

func TestWatcherKeepsPreviousConfigOnError(t *testing.T) {
	w, cache, changes := newTestWatcher(t)
	path := filepath.Join(cache.Dir(), "fia.yml")

	require.NoError(t, os.WriteFile(path, []byte("url: \"https://www.fia.com/documents\"\n"), 0644))
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Create})

	require.NoError(t, os.WriteFile(path, []byte("url: \"https://www.fia.com/documents\"\nformat: pdf\n"), 0644))
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})

	config, err := cache.GetConfig("fia")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, config.Format)
	assert.Len(t, *changes, 1)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	w, cache, changes := newTestWatcher(t)

	for _, name := range []string{"notes.txt", ".fia.yml.swp", ".fia.yml"} {
		w.handleEvent(fsnotify.Event{Name: filepath.Join(cache.Dir(), name), Op: fsnotify.Create})
	}
	w.handleEvent(fsnotify.Event{Name: filepath.Join(cache.Dir(), "fia.yml"), Op: fsnotify.Chmod})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(cache.Dir(), "unknown.yml"), Op: fsnotify.Remove})

	assert.Empty(t, *changes)
	assert.Equal(t, 0, cache.GetConfigCount())
}
