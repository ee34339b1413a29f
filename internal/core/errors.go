package core

import "fmt"

// Failure carries transport-neutral error details the dispatcher maps onto
// the wire response envelope. Temporary marks contention-style errors the
// client may retry (target already reserved, not enough free hosts).
type Failure struct {
	Code      string
	Detail    string
	Temporary bool
}

func (f Failure) Error() string {
	if f.Detail != "" {
		return fmt.Sprintf("%s: %s", f.Code, f.Detail)
	}
	return f.Code
}

// Common failure codes.
const (
	CodeNotFound     = "not_found"
	CodeExists       = "already_exists"
	CodeContention   = "contention"
	CodePolicy       = "policy"
	CodeInvalidParam = "invalid_param"
	CodeWrongKey     = "wrong_key"
	CodeInternal     = "internal"
)

func notFound(format string, args ...any) Failure {
	return Failure{Code: CodeNotFound, Detail: fmt.Sprintf(format, args...)}
}

func policy(format string, args ...any) Failure {
	return Failure{Code: CodePolicy, Detail: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) Failure {
	return Failure{Code: CodeInvalidParam, Detail: fmt.Sprintf(format, args...)}
}

func contention(format string, args ...any) Failure {
	return Failure{Code: CodeContention, Detail: fmt.Sprintf(format, args...), Temporary: true}
}
