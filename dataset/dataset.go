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

package dataset

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/gorse-io/tipscore/common/log"
	"github.com/gorse-io/tipscore/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// LoadDataset reads a whole Parquet file from a local path or a remote
// location into memory.
func LoadDataset(ctx context.Context, location string, opts blob.Options) (*Table, error) {
	r, err := blob.Open(ctx, location, opts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Logger().Warn("failed to close dataset", log.Location(location), zap.Error(err))
		}
	}()
	var (
		readerAt io.ReaderAt
		size     int64
	)
	if file, ok := r.(*os.File); ok {
		stat, err := file.Stat()
		if err != nil {
			return nil, errors.Trace(err)
		}
		readerAt, size = file, stat.Size()
	} else {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Annotatef(err, "read %s", log.RedactURL(location))
		}
		readerAt, size = bytes.NewReader(data), int64(len(data))
	}
	table, err := ReadParquet(readerAt, size)
	if err != nil {
		return nil, errors.Annotatef(err, "load %s", log.RedactURL(location))
	}
	log.Logger().Info("load dataset",
		log.Location(location),
		zap.Int("n_rows", table.Nrow()),
		zap.Int("n_columns", table.Ncol()))
	return table, nil
}

var periodPattern = regexp.MustCompile(`\d{4}-\d{2}`)

// Period returns the period label of a dataset location, which is the last
// year-month in its file name (2022-02 for yellow_tripdata_2022-02.parquet),
// or the file name without extension if there is none.
func Period(location string) string {
	name := location
	if loc, err := blob.ParseLocation(location); err == nil {
		name = loc.Base()
	} else {
		name = path.Base(name)
	}
	if matches := periodPattern.FindAllString(name, -1); len(matches) > 0 {
		return matches[len(matches)-1]
	}
	return strings.TrimSuffix(name, path.Ext(name))
}
