package lsw

import "errors"

var (
	ErrInvalidMagic     = errors.New("invalid LSW magic")
	ErrUnsupportedMajor = errors.New("unsupported LSW major version")
	ErrCorruptFile      = errors.New("corrupt LSW file")
)
