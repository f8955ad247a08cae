/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package airflowconfig

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

func (f Format) Validate() error {
	switch f {
	case FormatYAML, FormatJSON, FormatTOML:
		return nil
	}
	return fmt.Errorf("unsupported output format %q, must be one of [%s, %s, %s]", f, FormatYAML, FormatJSON, FormatTOML)
}

// Render writes v to w in the requested format
func Render(w io.Writer, v any, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml, %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json, %w", err)
		}
		return nil
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(v); err != nil {
			return fmt.Errorf("encoding toml, %w", err)
		}
		return nil
	}
	return format.Validate()
}

// FingerprintHeader is the first line of rendered yaml and toml configs. JSON has no comment syntax.
const FingerprintHeader = "# fingerprint: "

// RenderWithFingerprint renders v after a header comment carrying its fingerprint, so image builds can
// diff a single line to detect config changes. It returns the fingerprint.
func RenderWithFingerprint(w io.Writer, v any, format Format) (string, error) {
	if err := format.Validate(); err != nil {
		return "", err
	}
	fingerprint, err := Fingerprint(v)
	if err != nil {
		return "", err
	}
	if format != FormatJSON {
		if _, err := fmt.Fprintf(w, "%s%s\n", FingerprintHeader, fingerprint); err != nil {
			return "", fmt.Errorf("writing fingerprint, %w", err)
		}
	}
	return fingerprint, Render(w, v, format)
}

// Fingerprint returns a stable hash of a rendered config so that changes are visible in logs
func Fingerprint(v any) (string, error) {
	hash, err := hashstructure.Hash(v, hashstructure.FormatV2, &hashstructure.HashOptions{SlicesAsSets: false, ZeroNil: true})
	if err != nil {
		return "", fmt.Errorf("hashing %T, %w", v, err)
	}
	return strconv.FormatUint(hash, 16), nil
}
