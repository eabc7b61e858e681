// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gitlab.com/tozd/go/errors"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "tracksync.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, errors.Errorf("reading embedded schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, errors.Errorf("adding schema resource: %w", err)
	}

	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, errors.Errorf("compiling schema: %w", err)
	}
	return sch, nil
})

// 📐 CheckSchema validates the decoded configuration against the embedded
// JSON schema. Every input format is checked in its canonical JSON form, so
// YAML and HCL files follow the same rules as JSON ones.
func CheckSchema(cfg *Config) error {
	sch, err := compileSchema()
	if err != nil {
		return err
	}

	canonical, err := json.Marshal(cfg)
	if err != nil {
		return errors.Errorf("encoding config: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(canonical))
	if err != nil {
		return errors.Errorf("decoding canonical config: %w", err)
	}

	if err := sch.Validate(inst); err != nil {
		return errors.Errorf("config does not match schema: %w", err)
	}
	return nil
}

// Schema returns the embedded JSON schema document.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}
