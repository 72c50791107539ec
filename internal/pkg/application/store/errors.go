package store

import "fmt"

type AlreadyExistsError struct {
	msg string
}

func NewAlreadyExistsError(kind, name string) AlreadyExistsError {
	return AlreadyExistsError{msg: fmt.Sprintf("entity \"%s\" already exists in kind \"%s\"", name, kind)}
}

func (aee AlreadyExistsError) Error() string {
	return aee.msg
}

type NotFoundError struct {
	msg string
}

func NewNotFoundError(kind, name string) NotFoundError {
	return NotFoundError{msg: fmt.Sprintf("no entity \"%s\" in kind \"%s\"", name, kind)}
}

func (nfe NotFoundError) Error() string {
	return nfe.msg
}

type BadRequestError struct {
	msg string
}

func NewBadRequestError(msg string) BadRequestError {
	return BadRequestError{msg: msg}
}

func (bre BadRequestError) Error() string {
	return bre.msg
}
