// Package label canonicalizes Bazel target labels.
//
// Labels reported by the build tool come in several spellings for the same
// target: explicit names that repeat the package ("//a/b:b"), Kotlin wrapper
// names ("//a:foo_kt") and test library names ("//a:FooTest_lib"). [Normalize]
// maps all of them, and the "@//" spelling of the main repository, onto one
// comparable form so that labels read from diagnostics can be compared
// against labels read from BUILD files.
//
// All functions accept arbitrary strings and never fail: malformed input is
// normalized best-effort.
package label

import "strings"

// suffixRewrites are applied to a target name until none matches.
var suffixRewrites = []struct {
	suffix, replacement string
}{
	{"_kt", ""},
	{"Test_lib", "Test"},
}

// Normalize returns the canonical form of raw.
//
// The target name (the text after ':' in the final path segment, or the final
// path segment itself) loses any "_kt" suffix and has "Test_lib" collapsed to
// "Test". When the resulting name equals the final package segment the
// explicit ":name" is dropped, so "//a/b:b" becomes "//a/b". The main
// repository spelling "@//a/b" is written as "//a/b".
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	if strings.HasPrefix(raw, "@//") {
		raw = raw[1:]
	}
	pkg, name, explicit := split(raw)
	fixed := rewriteName(name)
	if fixed == lastSegment(pkg) {
		return pkg
	}
	if !explicit && fixed == name {
		return raw
	}
	return pkg + ":" + fixed
}

// Name returns the target name of l: the explicit name after ':' or, for
// labels without one, the final package segment.
func Name(l string) string {
	_, name, _ := split(l)
	return name
}

// Package returns the package portion of l without the repository prefix or
// target name. "//a/b:c" and "@//a/b" both yield "a/b".
func Package(l string) string {
	pkg, _, _ := split(l)
	if i := strings.Index(pkg, "//"); i >= 0 {
		pkg = pkg[i+2:]
	}
	return pkg
}

// Repository returns the repository prefix of l ("" for the main repository,
// "@maven_app" for "@maven_app//:foo"). The bare "@" prefix denotes the main
// repository and yields "".
func Repository(l string) string {
	i := strings.Index(l, "//")
	if i <= 0 || l[0] != '@' {
		return ""
	}
	repo := l[:i]
	if repo == "@" {
		return ""
	}
	return repo
}

// IsFirstParty reports whether l belongs to the main repository.
func IsFirstParty(l string) bool {
	return strings.HasPrefix(l, "//") || strings.HasPrefix(l, "@//")
}

// Compare orders labels with first-party targets before external ones and
// lexicographically within each group. It is suitable for slices.SortFunc.
func Compare(a, b string) int {
	fa, fb := IsFirstParty(a), IsFirstParty(b)
	switch {
	case fa && !fb:
		return -1
	case !fa && fb:
		return 1
	}
	return strings.Compare(a, b)
}

// split breaks l into its package part (everything before the name
// separator), its target name and whether the name was spelled explicitly.
func split(l string) (pkg, name string, explicit bool) {
	slash := strings.LastIndex(l, "/")
	if colon := strings.LastIndex(l, ":"); colon > slash {
		return l[:colon], l[colon+1:], true
	}
	return l, l[slash+1:], false
}

func lastSegment(pkg string) string {
	return pkg[strings.LastIndex(pkg, "/")+1:]
}

func rewriteName(name string) string {
	for changed := true; changed; {
		changed = false
		for _, rw := range suffixRewrites {
			base, ok := strings.CutSuffix(name, rw.suffix)
			if !ok || base+rw.replacement == "" {
				continue
			}
			name = base + rw.replacement
			changed = true
		}
	}
	return name
}
