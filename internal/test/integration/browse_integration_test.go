package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"clbr/internal/browse"
	"clbr/internal/dialect"
	"clbr/internal/entity"
	"clbr/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFiles(t *testing.T, tmpDir string) {
	basePy := `class Animal:
    kingdom = "Animalia"

    def __init__(self, name):
        self.name = name

    def speak(self):
        pass
`
	err := os.WriteFile(filepath.Join(tmpDir, "base.py"), []byte(basePy), 0644)
	require.NoError(t, err)

	petPy := `import base

class Dog(base.Animal):
    def speak(self):
        return "woof"
`
	err = os.WriteFile(filepath.Join(tmpDir, "pet.py"), []byte(petPy), 0644)
	require.NoError(t, err)

	err = os.Mkdir(filepath.Join(tmpDir, "zoo"), 0755)
	require.NoError(t, err)
	zooInit := `class Enclosure:
    def __init__(self):
        self.animals = []
`
	err = os.WriteFile(filepath.Join(tmpDir, "zoo", "__init__.py"), []byte(zooInit), 0644)
	require.NoError(t, err)

	feederRb := `class Feeder
  def initialize
    @schedule = []
  end

  private

  def refill
  end
end
`
	err = os.WriteFile(filepath.Join(tmpDir, "feeder.rb"), []byte(feederRb), 0644)
	require.NoError(t, err)

	tagsIdl := `module Tags {
    interface Tag {
        readonly attribute string id;
        void rename(in string label);
    };
};
`
	err = os.WriteFile(filepath.Join(tmpDir, "tags.idl"), []byte(tagsIdl), 0644)
	require.NoError(t, err)
}

func TestBrowsePipelineIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFiles(t, tmpDir)

	registry, err := dialect.NewRegistry(nil)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	browser := browse.New(registry, []string{tmpDir}, log)
	ctx := context.Background()

	// Python module with a cross-module superclass.
	dict := browser.ReadModule(ctx, "pet")
	require.Contains(t, dict, "Dog")

	dog, ok := dict["Dog"].(*entity.Class)
	require.True(t, ok)
	require.Len(t, dog.Supers, 1)
	assert.Equal(t, "base.Animal", dog.Supers[0].Name)
	require.NotNil(t, dog.Supers[0].Class, "superclass should be linked through the cache")
	assert.Equal(t, "Animal", dog.Supers[0].Class.Name)

	// Top-level read dropped its own cache entry; the recursive read stays.
	assert.Equal(t, 1, browser.CachedModules())

	// Package directory resolves through its __init__ file.
	zoo := browser.ReadModule(ctx, "zoo")
	require.Contains(t, zoo, "Enclosure")
	assert.Equal(t, filepath.Join(tmpDir, "zoo", "__init__.py"), zoo["Enclosure"].Path())

	// Ruby and IDL files go through the same dispatcher.
	feeder := browser.ReadModule(ctx, "feeder")
	require.Contains(t, feeder, "Feeder")
	refill := feeder["Feeder"].(*entity.Class).Method("refill")
	require.NotNil(t, refill)
	assert.Equal(t, entity.Private, refill.Vis())

	tags := browser.ReadModule(ctx, "tags")
	require.Contains(t, tags, "Tags")
	tag := tags["Tags"].(*entity.Class).Class("Tag")
	require.NotNil(t, tag)
	assert.Equal(t, entity.Interface, tag.Kind)

	// Unknown modules never error out of the dispatcher.
	missing := browser.ReadModule(ctx, "no_such_module")
	assert.NotNil(t, missing)
	assert.Empty(t, missing)
}

func TestStorePipelineIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFiles(t, tmpDir)

	registry, err := dialect.NewRegistry(nil)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	browser := browse.New(registry, []string{tmpDir}, log)
	ctx := context.Background()

	st, err := store.Open(filepath.Join(tmpDir, "clbr.db"))
	require.NoError(t, err)
	defer st.Close()

	dict := browser.ReadModule(ctx, "base")
	file := filepath.Join(tmpDir, "base.py")
	batch, err := st.SaveScan(ctx, "base", "python", file, dict)
	require.NoError(t, err)
	require.NotEmpty(t, batch)

	records, err := st.Module(ctx, "base")
	require.NoError(t, err)
	require.NotEmpty(t, records)

	byName := make(map[string]store.Record)
	for _, r := range records {
		assert.Equal(t, batch, r.Batch)
		byName[r.Parent+"/"+r.Name] = r
	}
	assert.Contains(t, byName, "/Animal")
	assert.Contains(t, byName, "Animal/speak")
	assert.Equal(t, "class", byName["/Animal"].Kind)

	// A rescan replaces the module's rows under a new batch.
	batch2, err := st.SaveScan(ctx, "base", "python", file, dict)
	require.NoError(t, err)
	require.NotEqual(t, batch, batch2)

	records, err = st.Module(ctx, "base")
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, batch2, r.Batch)
	}
}
