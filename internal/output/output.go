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
// Package output writes command results to stdout or to the file named by
// the --output flag.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"bennypowers.dev/hotswap/fs"
)

// Stdout is where results go when no output file is configured.
var Stdout io.Writer = os.Stdout

// Write outputs text, followed by a newline.
// If viper's "output" flag is set, writes to that file; otherwise prints to Stdout.
func Write(osfs fs.FileSystem, text string) error {
	if outputPath := viper.GetString("output"); outputPath != "" {
		return osfs.WriteFile(outputPath, []byte(text+"\n"), 0644)
	}
	_, err := fmt.Fprintln(Stdout, text)
	return err
}

// JSON outputs v as indented JSON.
func JSON(osfs fs.FileSystem, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return Write(osfs, string(data))
}
