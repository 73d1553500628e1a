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

package encoding

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteUint32(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	err := WriteUint32(buf, 42)
	assert.NoError(t, err)
	v, err := ReadUint32(buf)
	assert.NoError(t, err)
	assert.Equal(t, uint32(42), v)
}

func TestWriteString(t *testing.T) {
	a := "abc"
	buf := bytes.NewBuffer(nil)
	err := WriteString(buf, a)
	assert.NoError(t, err)
	var b string
	b, err = ReadString(buf)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReadBytesCorrupted(t *testing.T) {
	// negative length
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, binary.Write(buf, binary.LittleEndian, int32(-1)))
	_, err := ReadBytes(buf)
	assert.Error(t, err)
	// truncated payload
	buf = bytes.NewBuffer(nil)
	assert.NoError(t, binary.Write(buf, binary.LittleEndian, int32(10)))
	buf.WriteString("abc")
	_, err = ReadBytes(buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteGob(t *testing.T) {
	type payload struct {
		Name   string
		Values []float64
	}
	a := payload{Name: "abc", Values: []float64{1, 2, 3}}
	buf := bytes.NewBuffer(nil)
	err := WriteGob(buf, a)
	assert.NoError(t, err)
	var b payload
	err = ReadGob(buf, &b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}
