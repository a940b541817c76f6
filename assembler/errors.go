package assembler

import "github.com/synerthink/dotlanth/errs"

func errInvalidFormat(msg string) *errs.Error {
	return errs.New(errs.KindFormat, "invalid format: "+msg)
}

func errBytecodeSizeLimitExceeded(limit, attempted int) *errs.Error {
	return errs.New(errs.KindResource, "bytecode size limit exceeded").
		With(map[string]any{"limit": limit, "attempted": attempted})
}
