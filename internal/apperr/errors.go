// Package apperr defines the sentinel errors shared across shelf packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	ErrPathNotFound     = errors.New("no such file or directory")
	ErrNotADirectory    = errors.New("not a directory")
	ErrIsADirectory     = errors.New("is a directory")
	ErrReadOnlyWrite    = errors.New("read-only file")
	ErrBrokenSymlink    = errors.New("broken symlink")
	ErrSymlinkLoop      = errors.New("too many levels of symbolic links")
	ErrTagHasChildren   = errors.New("tag has children")
	ErrDuplicateTagPath = errors.New("tag path already exists")
	ErrPipelineStage    = errors.New("pipeline stage failed")
	ErrBadPattern       = errors.New("invalid pattern")
	ErrInvalidArgument  = errors.New("invalid argument")
)
