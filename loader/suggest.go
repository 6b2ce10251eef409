// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package loader

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// closest returns the candidate nearest to name,
// if any is close enough to be a likely typo. Ties
// go to the earlier candidate.
func closest(name string, candidates []string) (string, bool) {
	limit := max(2, len(name)/3)
	best, bestDist := "", limit+1
	lower := strings.ToLower(name)
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}

	return best, best != ""
}

// didYouMean returns a hint to append to an
// error message, or the empty string.
func didYouMean(name string, candidates []string) string {
	if c, ok := closest(name, candidates); ok {
		return fmt.Sprintf("; did you mean %s?", c)
	}

	return ""
}
