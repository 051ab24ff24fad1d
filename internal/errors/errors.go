package errors

import "errors"

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrFileNotFound  = errors.New("file not found")
	ErrDuplicateTask = errors.New("task already exists")
)
