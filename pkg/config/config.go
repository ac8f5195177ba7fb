// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the ambient env-var configuration shared by both
// entrypoints: a local ".env" file (when present) layered under the real
// OS environment, so a developer can keep credentials in a gitignored file
// during local runs without ever letting it shadow a deployed environment's
// real variables.
package config

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"

	"github.com/abcxyz/pkg/cfgloader"
)

// DefaultDotenvPath is the file Load looks for relative to the process's
// working directory.
const DefaultDotenvPath = ".env"

// Load populates target (a pointer to an `env`-tagged struct) from the OS
// environment, falling back to DefaultDotenvPath for any variable the OS
// environment doesn't set.
func Load(ctx context.Context, target any) error {
	return LoadFile(ctx, DefaultDotenvPath, target)
}

// LoadFile is Load with an explicit dotenv path, for tests and alternate
// deployment layouts.
func LoadFile(ctx context.Context, dotenvPath string, target any) error {
	lookuper := envconfig.OsLookuper()

	dotenv, err := dotenvLookuper(dotenvPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", dotenvPath, err)
	}
	if dotenv != nil {
		lookuper = envconfig.MultiLookuper(lookuper, dotenv)
	}

	if err := cfgloader.Load(ctx, target, cfgloader.WithLookuper(lookuper)); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// dotenvLookuper reads path as a dotenv file and returns a Lookuper over its
// key/value pairs, or nil if the file does not exist.
func dotenvLookuper(path string) (envconfig.Lookuper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	values, err := parseDotenv(data)
	if err != nil {
		return nil, err
	}
	return envconfig.MapLookuper(values), nil
}

// parseDotenv parses the subset of dotenv syntax this project needs: one
// KEY=VALUE assignment per line, blank lines and "#"-prefixed comments
// ignored, values optionally wrapped in matching single or double quotes.
func parseDotenv(data []byte) (map[string]string, error) {
	values := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected KEY=VALUE, got %q", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan dotenv content: %w", err)
	}
	return values, nil
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}
