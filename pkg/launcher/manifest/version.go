/*
Copyright 2024 The Nuclio Authors.

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

package manifest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/coreos/go-semver/semver"
	"github.com/nuclio/errors"
)

var pipPreReleaseRegex = regexp.MustCompile(`(?i)^(a|b|rc)([0-9]+)$`)

type versionBound struct {
	version   semver.Version
	inclusive bool
}

// versionRange is the set of versions allowed by a list of specifiers
type versionRange struct {
	lower    *versionBound
	upper    *versionBound
	excluded []semver.Version
}

// checkSatisfiable returns an error if no version can satisfy all of the specifiers. specifiers whose
// versions can't be ordered (epochs, post / dev releases, arbitrary equality) don't narrow the range
func checkSatisfiable(specifiers []Specifier) error {
	allowed := versionRange{}

	for _, specifier := range specifiers {
		allowed.apply(specifier)
	}

	if allowed.lower == nil || allowed.upper == nil {
		return nil
	}

	comparison := allowed.lower.version.Compare(allowed.upper.version)
	switch {
	case comparison > 0:
		return errors.Errorf("lower bound %s is above upper bound %s",
			allowed.lower.version.String(),
			allowed.upper.version.String())
	case comparison == 0 && (!allowed.lower.inclusive || !allowed.upper.inclusive):
		return errors.Errorf("empty range around %s", allowed.lower.version.String())
	case comparison == 0:
		for _, excludedVersion := range allowed.excluded {
			if excludedVersion.Equal(allowed.lower.version) {
				return errors.Errorf("only allowed version %s is excluded", excludedVersion.String())
			}
		}
	}

	return nil
}

func (vr *versionRange) apply(specifier Specifier) {
	isWildcard := strings.HasSuffix(specifier.Version, ".*")
	releaseVersion := strings.TrimSuffix(specifier.Version, ".*")

	version, segments, ok := toSemver(releaseVersion)
	if !ok {
		return
	}

	switch specifier.Operator {
	case "==":
		if isWildcard {
			if upper, ok := bumpSegment(segments, len(segments)-1); ok {
				vr.raiseLower(version, true)
				vr.lowerUpper(upper, false)
			}

			return
		}

		vr.raiseLower(version, true)
		vr.lowerUpper(version, true)
	case "!=":
		if !isWildcard {
			vr.excluded = append(vr.excluded, version)
		}
	case ">=":
		vr.raiseLower(version, true)
	case ">":
		vr.raiseLower(version, false)
	case "<=":
		vr.lowerUpper(version, true)
	case "<":
		vr.lowerUpper(version, false)
	case "~=":
		if upper, ok := bumpSegment(segments, len(segments)-2); ok {
			vr.raiseLower(version, true)
			vr.lowerUpper(upper, false)
		}
	}
}

func (vr *versionRange) raiseLower(version semver.Version, inclusive bool) {
	if vr.lower == nil {
		vr.lower = &versionBound{version, inclusive}
		return
	}

	comparison := version.Compare(vr.lower.version)
	if comparison > 0 || (comparison == 0 && !inclusive) {
		vr.lower = &versionBound{version, inclusive}
	}
}

func (vr *versionRange) lowerUpper(version semver.Version, inclusive bool) {
	if vr.upper == nil {
		vr.upper = &versionBound{version, inclusive}
		return
	}

	comparison := version.Compare(vr.upper.version)
	if comparison < 0 || (comparison == 0 && !inclusive) {
		vr.upper = &versionBound{version, inclusive}
	}
}

// toSemver maps a PEP 440 version onto semver. only up to three release segments and a/b/rc
// pre-releases have a faithful mapping
func toSemver(version string) (semver.Version, []int64, bool) {
	version = strings.ToLower(version)

	// local versions don't take part in ordering against public ones
	if index := strings.Index(version, "+"); index != -1 {
		version = version[:index]
	}

	if strings.Contains(version, "!") || strings.Contains(version, "post") || strings.Contains(version, "dev") {
		return semver.Version{}, nil, false
	}

	release := releaseSegment(version)
	preRelease := strings.TrimPrefix(version[len(release):], ".")

	var segments []int64
	for _, segment := range strings.Split(release, ".") {
		value, err := strconv.ParseInt(segment, 10, 64)
		if err != nil {
			return semver.Version{}, nil, false
		}

		segments = append(segments, value)
	}

	// 1.2.3.0 is 1.2.3, but 1.2.3.4 can't be represented
	for len(segments) > 3 && segments[len(segments)-1] == 0 {
		segments = segments[:len(segments)-1]
	}

	if len(segments) > 3 {
		return semver.Version{}, nil, false
	}

	semverVersion := semverFromSegments(segments)

	if preRelease != "" {
		matches := pipPreReleaseRegex.FindStringSubmatch(preRelease)
		if matches == nil {
			return semver.Version{}, nil, false
		}

		semverVersion.PreRelease = semver.PreRelease(matches[1] + "." + matches[2])
	}

	return semverVersion, segments, true
}

// bumpSegment increments the segment at index and drops everything after it (e.g. 1.4.2 @ 1 -> 1.5.0)
func bumpSegment(segments []int64, index int) (semver.Version, bool) {
	if index < 0 || index >= len(segments) {
		return semver.Version{}, false
	}

	bumped := append([]int64{}, segments[:index+1]...)
	bumped[index]++

	return semverFromSegments(bumped), true
}

func semverFromSegments(segments []int64) semver.Version {
	padded := append(append([]int64{}, segments...), 0, 0, 0)

	return semver.Version{
		Major: padded[0],
		Minor: padded[1],
		Patch: padded[2],
	}
}

// releaseSegment returns the leading dotted numeric part of a version ("1.2rc1" -> "1.2")
func releaseSegment(version string) string {
	end := 0

	for index, character := range version {
		if character >= '0' && character <= '9' {
			end = index + 1
			continue
		}

		if character == '.' && index+1 < len(version) && version[index+1] >= '0' && version[index+1] <= '9' {
			continue
		}

		break
	}

	return version[:end]
}
