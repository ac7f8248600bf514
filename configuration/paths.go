// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"os"
	"path/filepath"
)

// EnsureAbsolute - ensure the path is absolute
// if not, prepend the directory to make absolute path
func EnsureAbsolute(directory string, filePath string) string {
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(directory, filePath)
	}
	return filepath.Clean(filePath)
}

// MakeAbsolute - rewrite each non-blank path relative to directory,
// blank paths stay blank
func MakeAbsolute(directory string, paths ...*string) {
	for _, p := range paths {
		if "" != *p {
			*p = EnsureAbsolute(directory, *p)
		}
	}
}

// FileExists - check if a file exists
func FileExists(name string) bool {
	_, err := os.Stat(name)
	return nil == err
}
