package service

import "errors"

var (
	ErrInvalidCount      = errors.New("batch count must be greater than zero")
	ErrPoolExhausted     = errors.New("cannot generate unique guest identifier: pool exhausted")
	ErrPasswordExhausted = errors.New("cannot generate unique password within batch")
	ErrHistoryRead       = errors.New("identifier history unreadable")
	ErrHistoryWrite      = errors.New("identifier history not durably recorded")
	ErrLockLost          = errors.New("history lock lost before release, uniqueness unverified")
	ErrArtifactWrite     = errors.New("artifact write failed")
	ErrRender            = errors.New("render ticket sheet failed")
	ErrNoDocument        = errors.New("no rendered ticket sheet found")
	ErrPrint             = errors.New("print failed")
)
