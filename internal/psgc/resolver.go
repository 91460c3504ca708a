package psgc

import "strings"

// Resolver rebuilds the ancestry path of a code from the index. Each
// ancestor is found with a prefix range lookup, so resolving a path costs a
// handful of binary searches regardless of dataset size.
type Resolver struct {
	index  *Index
	scheme Scheme
}

func NewResolver(index *Index, scheme Scheme) *Resolver {
	return &Resolver{index: index, scheme: scheme}
}

// Resolve returns the " > " joined names from the region down to code.
func (r *Resolver) Resolve(code string) string {
	return strings.Join(r.Names(code), PathSeparator)
}

// Names returns the ancestor names of code, region first. Levels with no
// matching record are left out. Barangays end with their own name; a region
// is just its own name.
func (r *Resolver) Names(code string) []string {
	if code == "" {
		return nil
	}
	self, known := r.index.Get(code)
	if known && self.Level == LevelRegion {
		return []string{self.Name}
	}

	names := make([]string, 0, 4)
	if rec, ok := r.ancestor(code, LevelRegion); ok {
		names = append(names, rec.Name)
	}
	if rec, ok := r.ancestor(code, LevelProvince); ok {
		names = append(names, rec.Name)
	}
	if rec, ok := r.ancestor(code, LevelCity, LevelMunicipality); ok {
		names = append(names, rec.Name)
	}
	if known && self.Level == LevelBarangay {
		names = append(names, self.Name)
	}
	return names
}

// ancestor finds the record at levels sharing code's segment for levels[0].
// A code too short to contain that segment has no such ancestor.
func (r *Resolver) ancestor(code string, levels ...Level) (Record, bool) {
	n := r.scheme.PrefixLen(levels[0])
	if n == 0 || len(code) < n {
		return Record{}, false
	}
	return r.index.FindAncestor(code[:n], levels...)
}

// Entry pairs a record with its resolved path.
func (r *Resolver) Entry(rec Record) Entry {
	return Entry{Code: rec.Code, Name: rec.Name, FullPath: r.Resolve(rec.Code)}
}
