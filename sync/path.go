// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package sync

import (
	"strings"
)

// TranslatePath rewrites a folder path from one hierarchy separator to another.
// Segments and their order are kept. A zero separator means a flat store:
// the path is a single segment on the source side, and on the target side
// the source separator is kept as is.
func TranslatePath(path string, from, to rune) string {
	if from == 0 || to == 0 || from == to {
		return path
	}
	segments := strings.Split(path, string(from))
	return strings.Join(segments, string(to))
}
