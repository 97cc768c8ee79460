package app

import (
	"net/url"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileLoader reads the file at a URL of the scheme it was registered for.
type FileLoader interface {
	Load(u *url.URL) ([]byte, error)
}

// FileLoaderFunc adapts a function to a FileLoader.
type FileLoaderFunc func(u *url.URL) ([]byte, error)

func (f FileLoaderFunc) Load(u *url.URL) ([]byte, error) {
	return f(u)
}

var (
	loadersMu sync.RWMutex
	loaders   = map[string]FileLoader{
		"":     FileLoaderFunc(loadLocalFile),
		"file": FileLoaderFunc(loadLocalFile),
	}
)

// RegisterFileLoader makes loader handle URLs of scheme. It panics if the
// scheme already has a loader.
func RegisterFileLoader(scheme string, loader FileLoader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()

	if _, exists := loaders[scheme]; exists {
		panic("file loader already registered for scheme " + scheme)
	}
	loaders[scheme] = loader
}

// LoadFile reads the file at fileURL. URLs without a scheme are local paths.
func LoadFile(fileURL string) ([]byte, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid file url %s", fileURL)
	}

	loadersMu.RLock()
	loader, exists := loaders[u.Scheme]
	loadersMu.RUnlock()
	if !exists {
		return nil, errors.Errorf("no file loader for scheme %q", u.Scheme)
	}

	return loader.Load(u)
}

func loadLocalFile(u *url.URL) ([]byte, error) {
	return os.ReadFile(u.Path)
}
