// Copyright 2025 The Authors (see AUTHORS file)
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

package ghevent

import (
	"bufio"
	"io"
	"strings"
)

// parseFixture reads a fixture of the form:
//
//	x-github-event: push
//	x-github-delivery: 11111111-1111-4111-8111-111111111111
//
//	{"ref": "refs/heads/main"}
//
// a block of lowercase "header: value" lines, a blank line, then the raw
// JSON payload. Header names are lower-cased on read.
func parseFixture(r io.Reader) (map[string]string, []byte, error) {
	headers := map[string]string{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var bodyLines []string
	inBody := false
	for scanner.Scan() {
		line := scanner.Text()
		if inBody {
			bodyLines = append(bodyLines, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			inBody = true
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			inBody = true
			bodyLines = append(bodyLines, line)
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return headers, []byte(strings.Join(bodyLines, "\n")), nil
}
