package errors

import (
	"os"
	"regexp"
	"strings"
	"unicode"
)

// ValidateRoot checks that dir names an existing directory.
// The repository root is validated before any build activity so a typo
// never reaches the build tool.
func ValidateRoot(dir string) error {
	if dir == "" {
		return New(ErrCodeInvalidRoot, "repository root cannot be empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return Wrap(ErrCodeInvalidRoot, err, "repository root %q does not exist", dir)
	}
	if !info.IsDir() {
		return New(ErrCodeInvalidRoot, "repository root %q is not a directory", dir)
	}
	return nil
}

// ValidateModeArg checks the shape of the positional mode argument and
// returns the value after "mode=". The value itself is interpreted by the
// repair package.
func ValidateModeArg(arg string) (string, error) {
	value, ok := strings.CutPrefix(arg, "mode=")
	if !ok {
		return "", New(ErrCodeInvalidMode, "expected mode argument to start with 'mode=', got %q", arg)
	}
	if value == "" {
		return "", New(ErrCodeInvalidMode, "mode cannot be empty")
	}
	return value, nil
}

// targetPatternRegex matches what bazel accepts as a target pattern on the
// command line: an optional repository, a package path and an optional target
// or wildcard.
var targetPatternRegex = regexp.MustCompile(`^-?(@[A-Za-z0-9_.~+-]*)?//[A-Za-z0-9_./+=,@~-]*(\.\.\.)?(:[A-Za-z0-9_./+=,@~*-]*)?$`)

// ValidatePattern validates a target pattern before it is spliced into a query
// expression.
//
// The validation rules are intentionally conservative:
//   - No empty patterns
//   - No control characters
//   - No query operators (quotes, parentheses, whitespace)
//   - Must be an absolute pattern ("//..." or "@repo//...")
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return New(ErrCodeInvalidPattern, "target pattern cannot be empty")
	}

	for _, r := range pattern {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidPattern, "target pattern %q contains whitespace or control characters", pattern)
		}
	}

	if strings.ContainsAny(pattern, `'"()`) {
		return New(ErrCodeInvalidPattern, "target pattern %q contains query operators", pattern)
	}

	if !targetPatternRegex.MatchString(pattern) {
		return New(ErrCodeInvalidPattern, "invalid target pattern: %q (expected //pkg/..., //pkg:name or @repo//pkg)", pattern)
	}

	return nil
}
