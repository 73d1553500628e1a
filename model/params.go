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
	"encoding/json"
	"reflect"

	"github.com/gorse-io/tipscore/common/log"
	"go.uber.org/zap"
)

/* ParamName */

type ParamName string

const (
	NEstimators     ParamName = "NEstimators"     // number of trees
	MaxDepth        ParamName = "MaxDepth"        // maximum depth of a tree, 0 means unlimited
	MinSamplesSplit ParamName = "MinSamplesSplit" // minimum samples to split an internal node
	MinSamplesLeaf  ParamName = "MinSamplesLeaf"  // minimum samples in a leaf
	MaxFeatures     ParamName = "MaxFeatures"     // features sampled per split, 0 means sqrt(n_features)
	Bootstrap       ParamName = "Bootstrap"       // sample rows with replacement per tree
	RandomState     ParamName = "RandomState"     // random state (seed)
	OOBScore        ParamName = "OOBScore"        // score samples with the trees fitted without them
)

type Params map[ParamName]interface{}

func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		case int64:
			return int(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect_type", "int"),
				zap.String("actual_type", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect_type", "int64"),
				zap.String("actual_type", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

func (parameters Params) GetBool(name ParamName, _default bool) bool {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case bool:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect_type", "bool"),
				zap.String("actual_type", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

func (parameters Params) ToString() string {
	b, err := json.Marshal(parameters)
	if err != nil {
		log.Logger().Fatal("failed to marshal params", zap.Error(err))
	}
	return string(b)
}
