//go:build !linux

package organizer

import "os"

// renameNoReplace relies on the caller's existence check; the window
// between that check and the rename is not closed on this platform.
func renameNoReplace(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}
