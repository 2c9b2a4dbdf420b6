package service

import "fmt"

// ErrorKind 业务错误分类，由handler映射为HTTP状态码
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindInvalidState     ErrorKind = "invalid_state"
	KindInactiveSupplier ErrorKind = "inactive_supplier"
	KindSelfApproval     ErrorKind = "self_approval"
	KindValidation       ErrorKind = "validation"
	KindInvalidQuantity  ErrorKind = "invalid_quantity"
	KindEmptySource      ErrorKind = "empty_source"
	KindConflict         ErrorKind = "conflict"
	KindForbidden        ErrorKind = "forbidden"
	KindStorage          ErrorKind = "storage"
)

// DomainError 带分类的业务错误
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// KindOf 取错误分类；非DomainError按存储错误处理
func KindOf(err error) ErrorKind {
	if de, ok := err.(*DomainError); ok {
		return de.Kind
	}
	return KindStorage
}

func notFoundErr(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidStateErr(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func validationErr(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func forbiddenErr(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func conflictErr(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func storageErr(message string, err error) *DomainError {
	return &DomainError{Kind: KindStorage, Message: message, Err: err}
}
