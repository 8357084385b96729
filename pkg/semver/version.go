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

package semver

import (
	"fmt"
	"regexp"

	"github.com/blang/semver"
)

var (
	// ReleaseVersionWithSchemaKeyspace is the first release that stores
	// schema in the system_schema keyspace.
	ReleaseVersionWithSchemaKeyspace = semver.MustParse("3.0.0")

	reSemVersion = regexp.MustCompile(`\d+\.\d+\.\d+`)
	reSuffix     = regexp.MustCompile(`[~-]([a-zA-Z]+\d*)`)
)

// ReleaseVersion contains the release version reported by a node, with unknown version support.
type ReleaseVersion struct {
	version semver.Version
	unknown bool
}

// NewReleaseVersion parses the release_version column of system.local.
// Vendor suffixes like "3.0.8-SNAPSHOT" or "2024.1.3~rc1" are normalized first.
func NewReleaseVersion(v string) ReleaseVersion {
	normalized, err := normalize(v)
	if err != nil {
		return ReleaseVersion{unknown: true}
	}

	version, err := semver.Parse(normalized)
	if err != nil {
		return ReleaseVersion{unknown: true}
	}
	return ReleaseVersion{version: version, unknown: false}
}

func (rv ReleaseVersion) Unknown() bool {
	return rv.unknown
}

func (rv ReleaseVersion) String() string {
	if rv.unknown {
		return "unknown"
	}
	return rv.version.String()
}

// SupportFeatureUnsafe return true if a feature is supported (and always true if the version is unknown)
func (rv ReleaseVersion) SupportFeatureUnsafe(featureVersion semver.Version) bool {
	return rv.unknown || rv.version.GTE(featureVersion)
}

// SupportFeatureSafe return true if a feature is supported (and always false if the version is unknown)
func (rv ReleaseVersion) SupportFeatureSafe(featureVersion semver.Version) bool {
	return !rv.unknown && rv.version.GTE(featureVersion)
}

func normalize(fullVersion string) (string, error) {
	semVersion := reSemVersion.FindString(fullVersion)
	if semVersion == "" {
		return "", fmt.Errorf("could not extract semantic version from: %s", fullVersion)
	}

	suffixMatch := reSuffix.FindStringSubmatch(fullVersion)
	if len(suffixMatch) > 1 {
		semVersion = fmt.Sprintf("%s-%s", semVersion, suffixMatch[1])
	}
	return semVersion, nil
}
