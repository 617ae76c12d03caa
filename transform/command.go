/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// Command runs an external program for every transform. The program reads
// one JSON request from stdin and writes one JSON Result to stdout:
//
//	{"source": "...", "filename": "src/app.ts", "id": 3, "phase": "runtime", "paths": {"./dep.js": 4}}
//	{"code": "...", "requests": ["./dep.js"]}
//
// A non-zero exit status fails the transform with the program's stderr.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

type commandRequest struct {
	Source   string `json:"source"`
	Filename string `json:"filename"`
	Options
}

// ParseCommand splits a shell-style command line into a Command.
func ParseCommand(line string) (*Command, error) {
	parts, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("parsing transform command: %w", err)
	}
	if len(parts) == 0 {
		return nil, errors.New("empty transform command")
	}
	return &Command{Name: parts[0], Args: parts[1:]}, nil
}

// String returns the command line.
func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Transform runs the command once.
func (c *Command) Transform(ctx context.Context, source []byte, filename string, opts Options) (*Result, error) {
	input, err := json.Marshal(commandRequest{
		Source:   string(source),
		Filename: filename,
		Options:  opts,
	})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", c.Name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("%s: decoding output: %w", c.Name, err)
	}
	return &result, nil
}
