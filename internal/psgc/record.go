// Package psgc indexes the Philippine Standard Geographic Code hierarchy and
// answers list, search and ancestry queries over it. Everything in this
// package is immutable after construction and safe for concurrent readers.
package psgc

// Record is a single row of the PSGC dataset.
type Record struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Level Level  `json:"level"`
}

// Entry is a record as returned to API clients, enriched with the names of
// its ancestors.
type Entry struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	FullPath string `json:"full_path"`
}

// PathSeparator joins ancestor names in a full path.
const PathSeparator = " > "
