package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Scope is the private directory holding one request's input and output
// artifacts. No two scopes share a path.
type Scope struct {
	Dir        string
	InputPath  string
	OutputPath string

	once sync.Once
	err  error
}

func newScope(parent, id, ext string) (*Scope, error) {
	dir, err := os.MkdirTemp(parent, fmt.Sprintf("fftransform_%s_", id))
	if err != nil {
		return nil, err
	}
	return &Scope{
		Dir:        dir,
		InputPath:  filepath.Join(dir, "input"+ext),
		OutputPath: filepath.Join(dir, "output"+ext),
	}, nil
}

// Release removes the scope directory and everything in it. It is safe to
// call more than once and from several goroutines.
func (s *Scope) Release() error {
	s.once.Do(func() {
		s.err = os.RemoveAll(s.Dir)
	})
	return s.err
}
