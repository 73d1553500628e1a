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

package model

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gorse-io/tipscore/common/encoding"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// Model is the interface for all models. Any model in this
// package should implement it.
type Model interface {
	// SetParams sets hyper-parameters.
	SetParams(params Params)
	// GetParams returns hyper-parameters.
	GetParams() Params
	// Clear removes fitted state.
	Clear()
}

// BaseModel must be included by every model. Hyper-parameters, the random
// generator and the random seed are managed by the BaseModel.
type BaseModel struct {
	Params    Params
	rng       *rand.Rand
	randState int64
}

// SetParams sets a copy of hyper-parameters and reseeds the random generator.
func (model *BaseModel) SetParams(params Params) {
	model.Params = params.Copy()
	model.randState = model.Params.GetInt64(RandomState, 0)
	model.rng = rand.New(rand.NewSource(model.randState))
}

// GetParams returns all hyper-parameters.
func (model *BaseModel) GetParams() Params {
	return model.Params
}

func (model *BaseModel) GetRandomGenerator() *rand.Rand {
	if model.rng == nil {
		model.rng = rand.New(rand.NewSource(model.randState))
	}
	return model.rng
}

func (model *BaseModel) GetRandomState() int64 {
	return model.randState
}

type FitConfig struct {
	Jobs    int
	Verbose int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// Classifier is a binary classifier over dense numeric features.
type Classifier interface {
	Model
	// Fit trains the classifier on rows of X labeled by y.
	Fit(ctx context.Context, X mat.Matrix, y []int, config *FitConfig) error
	// Predict returns one label per row of X.
	Predict(X mat.Matrix) ([]int, error)
	// Marshal writes the fitted state.
	Marshal(w io.Writer) error
	// Unmarshal restores the fitted state written by Marshal.
	Unmarshal(r io.Reader) error
}

// CheckShape returns an error unless X has one row per label.
func CheckShape(X mat.Matrix, y []int) error {
	rows, _ := X.Dims()
	if rows != len(y) {
		return errors.NotValidf("shape: %d feature rows but %d labels", rows, len(y))
	}
	return nil
}

const magic = "TIPSCORE"

type registration struct {
	name    string
	version uint32
	create  func() Classifier
}

var (
	registryMutex sync.RWMutex
	registryNames = make(map[string]registration)
	registryTypes = make(map[reflect.Type]registration)
)

// Register makes a classifier implementation available to UnmarshalModel.
// The version must be bumped whenever the payload layout changes.
func Register(name string, version uint32, create func() Classifier) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, exist := registryNames[name]; exist {
		panic("model: Register called twice for " + name)
	}
	r := registration{name: name, version: version, create: create}
	registryNames[name] = r
	registryTypes[reflect.TypeOf(create())] = r
}

// Registered returns the names of registered implementations.
func Registered() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	names := make([]string, 0, len(registryNames))
	for name := range registryNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Header describes a serialized model.
type Header struct {
	Name    string
	Version uint32
	RunID   uuid.UUID
}

// MarshalModel writes the magic bytes, the header and the model payload.
func MarshalModel(w io.Writer, m Classifier, runID uuid.UUID) error {
	registryMutex.RLock()
	r, exist := registryTypes[reflect.TypeOf(m)]
	registryMutex.RUnlock()
	if !exist {
		return errors.NotFoundf("model %v", reflect.TypeOf(m))
	}
	if _, err := io.WriteString(w, magic); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteString(w, r.name); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteUint32(w, r.version); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteBytes(w, runID[:]); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(m.Marshal(w))
}

// UnmarshalModel reads a model written by MarshalModel.
func UnmarshalModel(r io.Reader) (Classifier, *Header, error) {
	prefix := make([]byte, len(magic))
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, nil, errors.NewNotValid(err, "model artifact: missing magic bytes")
	}
	if !bytes.Equal(prefix, []byte(magic)) {
		return nil, nil, errors.NotValidf("model artifact with magic %q", prefix)
	}
	var header Header
	var err error
	if header.Name, err = encoding.ReadString(r); err != nil {
		return nil, nil, errors.NewNotValid(err, "model artifact: header")
	}
	if header.Version, err = encoding.ReadUint32(r); err != nil {
		return nil, nil, errors.NewNotValid(err, "model artifact: version")
	}
	runID, err := encoding.ReadBytes(r)
	if err != nil {
		return nil, nil, errors.NewNotValid(err, "model artifact: run id")
	}
	if header.RunID, err = uuid.FromBytes(runID); err != nil {
		return nil, nil, errors.NewNotValid(err, "model artifact: run id")
	}
	registryMutex.RLock()
	reg, exist := registryNames[header.Name]
	registryMutex.RUnlock()
	if !exist {
		return nil, nil, errors.NotValidf("model artifact of unknown model %q", header.Name)
	}
	if header.Version != reg.version {
		return nil, nil, errors.NotSupportedf("model format version %d of %s (expect %d)",
			header.Version, header.Name, reg.version)
	}
	m := reg.create()
	if err = m.Unmarshal(r); err != nil {
		return nil, nil, errors.NewNotValid(err, "model artifact: "+header.Name+" payload")
	}
	return m, &header, nil
}
