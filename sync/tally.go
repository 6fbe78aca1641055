// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package sync

// FolderResult is the outcome of reconciling one folder pair
type FolderResult struct {
	Source  string
	Target  string
	Copied  int
	Flagged int
	Matched int

	// Duplicates lists identity keys found on several messages of the same folder
	SourceDuplicates []Duplicate
	TargetDuplicates []Duplicate
}

// Tally accumulates the results of walking one account
type Tally struct {
	Visited int
	Created []string
	Folders []FolderResult
}

// Copied returns the number of messages appended to the target
func (t *Tally) Copied() int {
	n := 0
	for _, f := range t.Folders {
		n += f.Copied
	}
	return n
}

// Flagged returns the number of target messages flagged for deletion
func (t *Tally) Flagged() int {
	n := 0
	for _, f := range t.Folders {
		n += f.Flagged
	}
	return n
}

// Matched returns the number of messages present on both sides
func (t *Tally) Matched() int {
	n := 0
	for _, f := range t.Folders {
		n += f.Matched
	}
	return n
}

// Duplicates returns the number of duplicate identity keys seen on either side
func (t *Tally) Duplicates() int {
	n := 0
	for _, f := range t.Folders {
		n += len(f.SourceDuplicates) + len(f.TargetDuplicates)
	}
	return n
}
