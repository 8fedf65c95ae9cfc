package artifacts

import (
	"bytes"
	"io"
	"sync"
)

// MapWriter implements an ArtifactWriter storing contents in memory.
type MapWriter struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMapWriter creates an in-memory artifact writer.
func NewMapWriter() (*MapWriter, error) {
	return &MapWriter{
		files: map[string][]byte{},
	}, nil
}

// WriteFile stores contents at filename, replacing previous contents.
func (w *MapWriter) WriteFile(filename string, contents io.Reader) (string, error) {
	b, err := io.ReadAll(contents)
	if err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[filename] = b
	return filename, nil
}

// Files returns a reader for every stored file.
func (w *MapWriter) Files() map[string]io.Reader {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]io.Reader, len(w.files))
	for k, v := range w.files {
		out[k] = bytes.NewReader(v)
	}
	return out
}
