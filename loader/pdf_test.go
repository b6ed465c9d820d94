package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDirectoryEmpty(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()

	docs, err := NewPDFLoader().LoadDirectory(context.Background(), dir)

	assert.NoError(err)
	assert.Empty(docs)
}

func TestLoadDirectoryMissing(t *testing.T) {
	assert := assert.New(t)

	_, err := NewPDFLoader().LoadDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))

	assert.Error(err)
}

func TestLoadDirectoryIgnoresOtherFiles(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain text"), 0o644)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	docs, err := NewPDFLoader().LoadDirectory(context.Background(), dir)

	assert.NoError(err)
	assert.Empty(docs)
}

func TestLoadFileCorrupt(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	err := os.WriteFile(path, []byte("this is not a pdf"), 0o644)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	_, err = NewPDFLoader().LoadFile(context.Background(), path)

	assert.Error(err)
}
