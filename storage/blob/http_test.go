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
	"net/http/httptest"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/trips.parquet":
			_, _ = w.Write([]byte("PAR1"))
		case "/forbidden.parquet":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	for _, progress := range []bool{false, true} {
		client := NewHTTP(server.Client(), progress)
		r, err := client.Open(context.Background(), server.URL+"/trips.parquet")
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		assert.NoError(t, err)
		assert.Equal(t, "PAR1", string(data))
		assert.NoError(t, r.Close())
	}

	client := NewHTTP(server.Client(), false)
	_, err := client.Open(context.Background(), server.URL+"/missing.parquet")
	assert.True(t, errors.Is(err, errors.NotFound))
	_, err = client.Open(context.Background(), server.URL+"/forbidden.parquet")
	assert.ErrorContains(t, err, "403")
	_, err = client.Create(context.Background(), server.URL+"/trips.parquet")
	assert.True(t, errors.Is(err, errors.NotSupported))
}
