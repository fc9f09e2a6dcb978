package scanner

import (
	"path/filepath"
	"sort"
)

// Index is an in-memory listing of one directory that is kept in step
// with renames performed by the caller, so that a pass over many rows
// reads the directory once.
type Index struct {
	directory string
	files     []FileEntry
}

// NewIndex scans directory and returns an Index over its files.
func NewIndex(directory string, opts ScanOptions) (*Index, error) {
	files, err := ScanWithOptions(directory, opts)
	if err != nil {
		return nil, err
	}
	absDir, err := filepath.Abs(directory)
	if err != nil {
		absDir = directory
	}
	return &Index{directory: absDir, files: files}, nil
}

// Directory returns the absolute path of the indexed directory.
func (ix *Index) Directory() string {
	return ix.directory
}

// Files returns the current listing in name order. The slice must not be
// modified by the caller.
func (ix *Index) Files() []FileEntry {
	return ix.files
}

// Len returns the number of indexed files.
func (ix *Index) Len() int {
	return len(ix.files)
}

// Contains reports whether a file with the given name is indexed.
func (ix *Index) Contains(name string) bool {
	_, ok := ix.find(name)
	return ok
}

// Rename moves the entry oldName to newName. It is a no-op when oldName
// is not indexed. An existing newName entry is kept as is.
func (ix *Index) Rename(oldName, newName string) {
	i, ok := ix.find(oldName)
	if !ok {
		return
	}
	ix.files = append(ix.files[:i], ix.files[i+1:]...)
	if ix.Contains(newName) {
		return
	}
	ix.insert(FileEntry{
		Name:     newName,
		FullPath: filepath.Join(ix.directory, newName),
	})
}

func (ix *Index) find(name string) (int, bool) {
	i := sort.Search(len(ix.files), func(i int) bool {
		return ix.files[i].Name >= name
	})
	if i < len(ix.files) && ix.files[i].Name == name {
		return i, true
	}
	return i, false
}

func (ix *Index) insert(entry FileEntry) {
	i, _ := ix.find(entry.Name)
	ix.files = append(ix.files, FileEntry{})
	copy(ix.files[i+1:], ix.files[i:])
	ix.files[i] = entry
}
