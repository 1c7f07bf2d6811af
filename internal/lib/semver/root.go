package semver

import (
	"strconv"
	"strings"

	blang "github.com/blang/semver/v4"
)

// dateSeparators are the characters of an ISO-8601 timestamp that become
// segment separators in a date version.
var dateSeparators = strings.NewReplacer("-", ".", "T", ".", ":", ".", "+", ".")

// TrimVersion removes every leading "v" from a tag name.
func TrimVersion(version string) string {
	return strings.TrimLeft(strings.TrimSpace(version), "v")
}

// DateToVersion turns a commit timestamp into a dotted version token.
// "2024-01-08T16:33:24Z" becomes "2024.01.08.16.33.24".
func DateToVersion(date string) string {
	return dateSeparators.Replace(strings.TrimRight(strings.TrimSpace(date), "Z"))
}

// Compare orders two version strings.
// Returns:
//   - 1 if v1 > v2
//   - 0 if v1 == v2
//   - -1 if v1 < v2
//
// Plain semantic versions (including prereleases) use semver precedence.
// Anything else, such as date versions with six segments, is compared
// segment by segment, numerically where both segments are numbers.
func Compare(v1, v2 string) int {
	v1 = TrimVersion(v1)
	v2 = TrimVersion(v2)

	if s1, s2, ok := parseBoth(v1, v2); ok {
		return s1.Compare(s2)
	}
	return compareSegments(v1, v2)
}

// IsGreater reports whether v2 is strictly newer than v1.
// IsGreater("1.2.0", "1.10.0") returns true
// IsGreater("1.2.3", "1.2.3") returns false
// Empty versions never compare as greater.
func IsGreater(v1, v2 string) bool {
	if TrimVersion(v2) == "" {
		return false
	}
	if TrimVersion(v1) == "" {
		return true
	}
	return Compare(v1, v2) < 0
}

func parseBoth(v1, v2 string) (blang.Version, blang.Version, bool) {
	if !looksSemantic(v1) || !looksSemantic(v2) {
		return blang.Version{}, blang.Version{}, false
	}
	s1, err1 := blang.ParseTolerant(v1)
	s2, err2 := blang.ParseTolerant(v2)
	if err1 != nil || err2 != nil {
		return blang.Version{}, blang.Version{}, false
	}
	return s1, s2, true
}

// looksSemantic limits the semver path to versions with at most three
// numeric core segments so that date versions never get truncated.
func looksSemantic(v string) bool {
	core := v
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return core != "" && strings.Count(core, ".") <= 2
}

func compareSegments(v1, v2 string) int {
	p1 := splitSegments(v1)
	p2 := splitSegments(v2)

	for len(p1) < len(p2) {
		p1 = append(p1, "0")
	}
	for len(p2) < len(p1) {
		p2 = append(p2, "0")
	}

	for i := range p1 {
		if c := compareSegment(p1[i], p2[i]); c != 0 {
			return c
		}
	}
	return 0
}

func splitSegments(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '+' || r == '_'
	})
	if len(parts) == 0 {
		return []string{"0"}
	}
	return parts
}

func compareSegment(a, b string) int {
	n1, err1 := strconv.ParseUint(a, 10, 64)
	n2, err2 := strconv.ParseUint(b, 10, 64)
	switch {
	case err1 == nil && err2 == nil:
		switch {
		case n1 > n2:
			return 1
		case n1 < n2:
			return -1
		}
		return 0
	case err1 == nil:
		// numbers sort after words, so 1.0.0 > 1.0.beta
		return 1
	case err2 == nil:
		return -1
	}
	return strings.Compare(a, b)
}
