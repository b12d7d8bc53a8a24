package uploads

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save(strings.NewReader("receipt bytes"), "My Receipt.PNG")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.NotContains(t, name, "My Receipt")

	file, err := store.Open(name)
	require.NoError(t, err)
	defer file.Close()

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "receipt bytes", string(content))
}

func TestSaveGeneratesDistinctNames(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	first, err := store.Save(strings.NewReader("a"), "proof.jpg")
	require.NoError(t, err)
	second, err := store.Save(strings.NewReader("b"), "proof.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestRemove(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save(strings.NewReader("x"), "proof.png")
	require.NoError(t, err)

	require.NoError(t, store.Remove(name))

	_, err = store.Open(name)
	assert.True(t, os.IsNotExist(err))
}

func TestRejectsPathTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../secret", "a/b.png", "..", "/etc/passwd"} {
		_, err = store.Open(name)
		assert.Error(t, err, "name %q", name)
		assert.Error(t, store.Remove(name), "name %q", name)
	}
}
