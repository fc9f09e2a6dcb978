// Package organizer performs the rename operations for isinrename.
package organizer

import (
	"errors"
	"fmt"
	"os"
)

// MoveErrorType represents the type of move error.
type MoveErrorType string

const (
	// SourceNotFound indicates the source file does not exist.
	SourceNotFound MoveErrorType = "SOURCE_NOT_FOUND"
	// DestinationExists indicates a file already exists at the destination.
	DestinationExists MoveErrorType = "DESTINATION_EXISTS"
	// PermissionDenied indicates insufficient permissions for the operation.
	PermissionDenied MoveErrorType = "PERMISSION_DENIED"
)

// MoveError represents an error that occurred during file movement.
type MoveError struct {
	Type MoveErrorType
	Path string
	Err  error
}

func (e *MoveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Path)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

// IsDestinationExists reports whether err is a MoveError for an occupied
// destination.
func IsDestinationExists(err error) bool {
	var moveErr *MoveError
	return errors.As(err, &moveErr) && moveErr.Type == DestinationExists
}

// MoveResult represents the result of a successful rename.
type MoveResult struct {
	SourcePath      string
	DestinationPath string
}

// FileExists checks if anything exists at the given path. Dangling
// symlinks count as existing so they are never replaced.
func FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Rename moves sourcePath to destinationPath without ever replacing an
// existing destination. An occupied destination yields a MoveError of
// type DestinationExists and leaves both files untouched.
func Rename(sourcePath, destinationPath string) (*MoveResult, error) {
	if _, err := os.Lstat(sourcePath); err != nil {
		if os.IsNotExist(err) {
			return nil, &MoveError{
				Type: SourceNotFound,
				Path: sourcePath,
				Err:  err,
			}
		}
		return nil, err
	}

	if FileExists(destinationPath) {
		return nil, &MoveError{
			Type: DestinationExists,
			Path: destinationPath,
		}
	}

	if err := renameNoReplace(sourcePath, destinationPath); err != nil {
		switch {
		case errors.Is(err, os.ErrExist):
			return nil, &MoveError{
				Type: DestinationExists,
				Path: destinationPath,
				Err:  err,
			}
		case errors.Is(err, os.ErrNotExist):
			return nil, &MoveError{
				Type: SourceNotFound,
				Path: sourcePath,
				Err:  err,
			}
		case os.IsPermission(err):
			return nil, &MoveError{
				Type: PermissionDenied,
				Path: sourcePath,
				Err:  err,
			}
		}
		return nil, fmt.Errorf("rename %s: %w", sourcePath, err)
	}

	return &MoveResult{
		SourcePath:      sourcePath,
		DestinationPath: destinationPath,
	}, nil
}
