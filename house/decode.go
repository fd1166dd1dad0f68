// Copyright 2025 Zintix Labs
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


package house

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zintix-labs/dicelab/errs"
	"gopkg.in/yaml.v3"
)

// decodeYAML 嚴格模式：多寫或拼錯欄位就報錯。
func decodeYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return errs.Invalidf("decode yaml: %v", err)
	}
	return nil
}

func decodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errs.Invalidf("decode json: %v", err)
	}
	return nil
}

// SettingByYAML 解析、補預設並檢查。
func SettingByYAML(data []byte) (*Setting, error) {
	s := &Setting{}
	if err := decodeYAML(data, s); err != nil {
		return nil, err
	}
	if err := s.init(); err != nil {
		return nil, errs.Wrap(err, "house setting initialized err")
	}
	return s, nil
}

func SettingByJSON(data []byte) (*Setting, error) {
	s := &Setting{}
	if err := decodeJSON(data, s); err != nil {
		return nil, err
	}
	if err := s.init(); err != nil {
		return nil, errs.Wrap(err, "house setting initialized err")
	}
	return s, nil
}

func PresetsByYAML(data []byte, s *Setting) (*Presets, error) {
	var f presetFile
	if err := decodeYAML(data, &f); err != nil {
		return nil, err
	}
	return newPresets(f, s)
}

func PresetsByJSON(data []byte, s *Setting) (*Presets, error) {
	var f presetFile
	if err := decodeJSON(data, &f); err != nil {
		return nil, err
	}
	return newPresets(f, s)
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// LoadSetting 依副檔名選擇解析器；path 為空時回傳內嵌預設值。
func LoadSetting(path string) (*Setting, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, "read house setting "+path)
	}
	if isJSON(path) {
		return SettingByJSON(b)
	}
	return SettingByYAML(b)
}

// LoadPresets 同 LoadSetting，path 為空時回傳內嵌 preset。
func LoadPresets(path string, s *Setting) (*Presets, error) {
	if path == "" {
		return DefaultPresets(s)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, "read presets "+path)
	}
	if isJSON(path) {
		return PresetsByJSON(b, s)
	}
	return PresetsByYAML(b, s)
}
