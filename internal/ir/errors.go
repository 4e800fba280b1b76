package ir

import "mxc/internal/diag"

// Internal-invariant codes a pass should never actually hit; kept distinct
// per failure shape so a panic message points at the right invariant.
const (
	CodeSSAViolation = diag.CodeInternalSSAViolation
	CodeTypeMismatch = diag.CodeInternalTypeMismatch
	CodeLookupMiss   = diag.CodeInternalLookupMiss
)

func fatalf(code, format string, args ...interface{}) {
	diag.Fatalf(code, format, args...)
}
