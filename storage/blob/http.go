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

	"github.com/gorse-io/tipscore/common/log"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
)

// HTTP reads objects over HTTP(S). Object names are full URLs.
type HTTP struct {
	client   *http.Client
	progress bool
}

func NewHTTP(client *http.Client, progress bool) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client, progress: progress}
}

func (h *HTTP) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, name, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, errors.NotFoundf("object %s", log.RedactURL(name))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_ = resp.Body.Close()
		return nil, errors.Errorf("download %s: %s", log.RedactURL(name), resp.Status)
	}
	if !h.progress {
		return resp.Body, nil
	}
	pbReader := progressbar.NewReader(resp.Body, progressbar.DefaultBytes(
		resp.ContentLength,
		"Downloading "+log.RedactURL(name),
	))
	return struct {
		io.Reader
		io.Closer
	}{&pbReader, resp.Body}, nil
}

func (h *HTTP) Create(context.Context, string) (io.WriteCloser, error) {
	return nil, errors.NotSupportedf("writing over HTTP")
}

func (h *HTTP) List(context.Context) ([]string, error) {
	return nil, errors.NotSupportedf("listing over HTTP")
}
