package quicengine

import "github.com/penguintech/march-quicd/internal/errs"

var (
	errUnidirectionalWrite = errs.ErrProtocolError
	errUnidirectionalRead  = errs.ErrProtocolError
)
