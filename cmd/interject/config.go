// This file is part of Interject project, available at https://github.com/qrdl/interject
// Copyright (c) 2025-2026 Ilya Caramishev. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at https://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

const (
	configDir  = ".interject"
	configFile = "config.yml"
)

// Config defines the options available through the config file.
type Config struct {
	// Log enables engine debug logging, same as --log.
	Log bool `yaml:"log"`
	// MaxRegions caps the number of regions the maps command prints;
	// 0 means no cap.
	MaxRegions int `yaml:"max-regions"`
}

// loadConfig reads path, or ~/.interject/config.yml when path is empty.
// A missing default config file is not an error.
func loadConfig(path string) (*Config, error) {
	defaulted := path == ""
	if defaulted {
		home, err := os.UserHomeDir()
		if err != nil {
			return &Config{}, nil
		}
		path = filepath.Join(home, configDir, configFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if defaulted && os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}
