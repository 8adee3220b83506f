package domain

import "errors"

var (
	// ErrInvalidInput signals a malformed client request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStore signals a relational store failure.
	ErrStore = errors.New("database error")
	// ErrSearchBackend signals a search daemon channel failure.
	ErrSearchBackend = errors.New("search backend error")
	// ErrRender signals a page template failure.
	ErrRender = errors.New("template render error")
)
