package server

import (
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

var errIsDir = errors.New("is a directory")

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".json": "application/json",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".txt":  "text/plain; charset=utf-8",
}

func contentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "text/plain; charset=utf-8"
}

// StaticRoot serves files from one directory. Lookups go through os.Root,
// so no request path (.., absolute paths, symlinks) can leave it.
type StaticRoot struct {
	root *os.Root
}

// OpenStaticRoot returns a root that serves nothing when dir does not
// exist.
func OpenStaticRoot(dir string) (*StaticRoot, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &StaticRoot{}, nil
		}
		return nil, errors.Wrapf(err, "open static root %s", dir)
	}
	return &StaticRoot{root: root}, nil
}

// Open maps a request path to a file under the root. "/" maps to
// index.html.
func (s *StaticRoot) Open(target string) (io.ReadCloser, int64, error) {
	if s == nil || s.root == nil {
		return nil, 0, os.ErrNotExist
	}
	name := staticName(target)

	f, err := s.root.Open(name)
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if st.IsDir() {
		f.Close()
		return nil, 0, errIsDir
	}
	return f, st.Size(), nil
}

func (s *StaticRoot) Close() error {
	if s == nil || s.root == nil {
		return nil
	}
	return s.root.Close()
}

func staticName(target string) string {
	name := strings.TrimPrefix(target, "/")
	if name == "" {
		return "index.html"
	}
	return name
}
