package graph

import "github.com/bmatcuk/doublestar/v4"

// globMatch matches a package.json sideEffects glob (or a
// requireCycleIgnorePatterns glob) against a forward-slash relative path.
// sideEffects patterns in the wild commonly use "**", which stdlib
// path.Match doesn't support.
func globMatch(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}
