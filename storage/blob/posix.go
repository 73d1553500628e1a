// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/gorse-io/tipscore/common/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// POSIX stores objects as files in a directory. The directory is never
// created by the store.
type POSIX struct {
	dir string
}

func NewPOSIX(dir string) *POSIX {
	return &POSIX{dir: dir}
}

// Open a file for reading. The returned reader is an *os.File.
func (p *POSIX) Open(_ context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(p.dir, name))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return file, nil
}

// Create a file for writing. Data goes to a temporary file in the same
// directory which replaces the target on Close, so readers never observe a
// partial file.
func (p *POSIX) Create(_ context.Context, name string) (io.WriteCloser, error) {
	fullPath := filepath.Join(p.dir, name)
	file, err := os.CreateTemp(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &posixWriter{file: file, path: fullPath}, nil
}

func (p *POSIX) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

type posixWriter struct {
	file *os.File
	path string
	err  error
}

func (w *posixWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	if err != nil && w.err == nil {
		w.err = errors.Trace(err)
	}
	return n, err
}

// CloseWithError discards the written data.
func (w *posixWriter) CloseWithError(err error) error {
	if w.err == nil {
		w.err = err
	}
	return w.Close()
}

func (w *posixWriter) Close() error {
	tmp := w.file.Name()
	if w.err == nil {
		w.err = errors.Trace(w.file.Sync())
	}
	if err := w.file.Close(); err != nil && w.err == nil {
		w.err = errors.Trace(err)
	}
	if w.err == nil {
		w.err = errors.Trace(os.Rename(tmp, w.path))
	}
	if w.err != nil {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			log.Logger().Warn("failed to remove temporary file", zap.String("file", tmp), zap.Error(err))
		}
	}
	return w.err
}
