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
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gorse-io/tipscore/common/log"
	"github.com/gorse-io/tipscore/config"
	"github.com/juju/errors"
)

// Store reads and writes named objects.
type Store interface {
	// Open an object for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create an object for writing. The object is durable once Close returns
	// without error.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// List names of objects under the store prefix.
	List(ctx context.Context) ([]string, error)
}

const (
	SchemeFile   = "file"
	SchemeS3     = "s3"
	SchemeGCS    = "gs"
	SchemeAzure  = "azblob"
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
	schemeSuffix = "://"
)

// Location identifies an object. Local paths have the file scheme.
type Location struct {
	Scheme string
	Bucket string
	Name   string
}

// ParseLocation parses a local path or one of file://, s3://bucket/key,
// gs://bucket/key, azblob://container/key and http(s):// URLs.
func ParseLocation(raw string) (*Location, error) {
	if raw == "" {
		return nil, errors.NotValidf("empty location")
	}
	if !strings.Contains(raw, schemeSuffix) {
		return &Location{Scheme: SchemeFile, Name: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.NewNotValid(err, "location "+log.RedactURL(raw))
	}
	switch u.Scheme {
	case SchemeFile:
		return &Location{Scheme: SchemeFile, Name: u.Host + u.Path}, nil
	case SchemeS3, SchemeGCS, SchemeAzure:
		if u.Host == "" {
			return nil, errors.NotValidf("location %s without bucket", raw)
		}
		return &Location{Scheme: u.Scheme, Bucket: u.Host, Name: strings.TrimPrefix(u.Path, "/")}, nil
	case SchemeHTTP, SchemeHTTPS:
		return &Location{Scheme: u.Scheme, Name: raw}, nil
	default:
		return nil, errors.NotSupportedf("location scheme %q", u.Scheme)
	}
}

// Base returns the last element of the object name.
func (l *Location) Base() string {
	if l.Scheme == SchemeHTTP || l.Scheme == SchemeHTTPS {
		if u, err := url.Parse(l.Name); err == nil {
			return path.Base(u.Path)
		}
	}
	return path.Base(filepath.ToSlash(l.Name))
}

// IsLocal reports whether the location is on the local file system.
func (l *Location) IsLocal() bool {
	return l.Scheme == SchemeFile
}

func (l *Location) String() string {
	switch l.Scheme {
	case SchemeFile, SchemeHTTP, SchemeHTTPS:
		return l.Name
	default:
		return l.Scheme + schemeSuffix + l.Bucket + "/" + l.Name
	}
}

// Options configure how locations are resolved to stores.
type Options struct {
	Storage  config.StorageConfig
	Progress bool         // show a progress bar for HTTP downloads
	Client   *http.Client // HTTP client, http.DefaultClient if nil
}

// NewStore returns the store holding a location and the name of the object
// within the store.
func NewStore(loc *Location, opts Options) (Store, string, error) {
	switch loc.Scheme {
	case SchemeFile:
		return NewPOSIX(filepath.Dir(loc.Name)), filepath.Base(loc.Name), nil
	case SchemeS3:
		store, err := NewS3(opts.Storage.S3, loc.Bucket, "")
		return store, loc.Name, errors.Trace(err)
	case SchemeGCS:
		store, err := NewGCS(opts.Storage.GCS, loc.Bucket, "")
		return store, loc.Name, errors.Trace(err)
	case SchemeAzure:
		store, err := NewAzureBlob(opts.Storage.Azure, loc.Bucket, "")
		return store, loc.Name, errors.Trace(err)
	case SchemeHTTP, SchemeHTTPS:
		return NewHTTP(opts.Client, opts.Progress), loc.Name, nil
	default:
		return nil, "", errors.NotSupportedf("location scheme %q", loc.Scheme)
	}
}

// Open an object by location.
func Open(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, errors.Trace(err)
	}
	store, name, err := NewStore(loc, opts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Debug("open object", log.Location(location))
	r, err := store.Open(ctx, name)
	if err != nil {
		return nil, errors.Annotatef(err, "open %s", log.RedactURL(location))
	}
	return r, nil
}

// Create an object by location.
func Create(ctx context.Context, location string, opts Options) (io.WriteCloser, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, errors.Trace(err)
	}
	store, name, err := NewStore(loc, opts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Debug("create object", log.Location(location))
	w, err := store.Create(ctx, name)
	if err != nil {
		return nil, errors.Annotatef(err, "create %s", log.RedactURL(location))
	}
	return w, nil
}

// Expand returns the Parquet objects under a location ending with a slash in
// name order. Other locations are returned unchanged.
func Expand(ctx context.Context, location string, opts Options) ([]string, error) {
	if !strings.HasSuffix(location, "/") {
		return []string{location}, nil
	}
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var (
		store  Store
		prefix string
	)
	switch loc.Scheme {
	case SchemeFile:
		store = NewPOSIX(loc.Name)
	case SchemeS3:
		prefix = loc.Name
		store, err = NewS3(opts.Storage.S3, loc.Bucket, prefix)
	case SchemeGCS:
		prefix = loc.Name
		store, err = NewGCS(opts.Storage.GCS, loc.Bucket, prefix)
	case SchemeAzure:
		prefix = loc.Name
		store, err = NewAzureBlob(opts.Storage.Azure, loc.Bucket, prefix)
	default:
		return nil, errors.NotSupportedf("listing %s locations", loc.Scheme)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	names, err := store.List(ctx)
	if err != nil {
		return nil, errors.Annotatef(err, "list %s", log.RedactURL(location))
	}
	sort.Strings(names)
	var locations []string
	for _, name := range names {
		if strings.HasSuffix(name, ".parquet") {
			locations = append(locations, location+name)
		}
	}
	return locations, nil
}

// pipeWriter streams writes to an upload running in another goroutine.
type pipeWriter struct {
	*io.PipeWriter
	done chan struct{}
	err  error
}

func newPipeWriter(upload func(r io.Reader) error) *pipeWriter {
	pr, pw := io.Pipe()
	w := &pipeWriter{PipeWriter: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.err = upload(pr)
		// unblock writers if the upload stopped early
		_ = pr.CloseWithError(w.err)
	}()
	return w
}

// Close waits for the upload to finish and returns its error.
func (w *pipeWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return errors.Trace(err)
	}
	<-w.done
	return errors.Trace(w.err)
}
