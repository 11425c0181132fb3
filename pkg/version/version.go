// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/coreos/go-semver/semver"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Version information.
var (
	ReleaseVersion = "v0.1.0"
	BuildTS        = "None"
	GitHash        = "None"
	GitBranch      = "None"
	GoVersion      = runtime.Version()
)

// SDK reported to callers for compatibility negotiation.
const (
	SDKLanguage = "go"
	SDKVersion  = "0.1.0"
)

// ReleaseSemver returns a valid Semantic Versions or an empty if the
// ReleaseVersion is not set at compile time.
func ReleaseSemver() string {
	s := removeVAndHash(ReleaseVersion)
	v, err := semver.NewVersion(s)
	if err != nil {
		return ""
	}
	return v.String()
}

// removeVAndHash sanitizes a version string.
func removeVAndHash(v string) string {
	if v == "" {
		return v
	}
	v = strings.TrimSpace(v)
	// Remove the commit hash suffix such as "-20-g1a2b3c4".
	if idx := strings.Index(v, "-g"); idx > 0 {
		v = v[:idx]
		if dash := strings.LastIndex(v, "-"); dash > 0 {
			v = v[:dash]
		}
	}
	return strings.TrimPrefix(v, "v")
}

// IsCompatible reports whether a peer SDK version can talk to this runtime.
// Versions are compatible when they share the major version, or the minor
// version while still in 0.x.
func IsCompatible(peer string) bool {
	mine, err := semver.NewVersion(removeVAndHash(SDKVersion))
	if err != nil {
		return false
	}
	other, err := semver.NewVersion(removeVAndHash(peer))
	if err != nil {
		return false
	}
	if mine.Major != other.Major {
		return false
	}
	if mine.Major == 0 {
		return mine.Minor == other.Minor
	}
	return true
}

// LogVersionInfo prints the function executor version information.
func LogVersionInfo() {
	log.Info("Welcome to Function Executor",
		zap.String("release-version", ReleaseVersion),
		zap.String("git-hash", GitHash),
		zap.String("git-branch", GitBranch),
		zap.String("utc-build-time", BuildTS),
		zap.String("go-version", GoVersion),
		zap.String("sdk-version", SDKVersion),
	)
}

// GetRawInfo returns basic version information string.
func GetRawInfo() string {
	var info string
	info += fmt.Sprintf("Release Version: %s\n", ReleaseVersion)
	info += fmt.Sprintf("Git Commit Hash: %s\n", GitHash)
	info += fmt.Sprintf("Git Branch: %s\n", GitBranch)
	info += fmt.Sprintf("UTC Build Time: %s\n", BuildTS)
	info += fmt.Sprintf("Go Version: %s\n", GoVersion)
	info += fmt.Sprintf("SDK Version: %s %s\n", SDKLanguage, SDKVersion)
	return info
}
