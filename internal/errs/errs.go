// Package errs 定义了各组件边界统一使用的错误分类。
// 依赖方的 I/O 失败在边界处被翻译成这里的类型，handler 据此映射 HTTP 状态码。
package errs

import (
	"errors"
	"fmt"
)

// Kind 表示错误的分类。
type Kind int

const (
	// KindInternal 未分类的内部错误，对外只暴露通用信息。
	KindInternal Kind = iota
	// KindValidation 请求参数校验失败，在任何外部调用之前被拒绝。
	KindValidation
	// KindNotFound 单实体查询未命中。
	KindNotFound
	// KindServiceUnavailable 索引存储或上游目录不可达，调用方可稍后重试。
	KindServiceUnavailable
	// KindModelUnavailable Embedding 模型不可用，当前请求失败但进程不受影响。
	KindModelUnavailable
)

// Error 携带分类信息的错误，保留原始错误用于诊断。
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind 返回错误的分类。
func (e *Error) Kind() Kind { return e.kind }

// New 创建一个不包装下层错误的分类错误。
func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

// Newf 创建一个带格式化消息的分类错误。
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap 将下层错误包装为分类错误，原始消息保留在链上。
func Wrap(kind Kind, msg string, err error) error {
	return &Error{kind: kind, msg: msg, err: err}
}

// KindOf 返回错误链上最外层分类错误的 Kind，未分类时返回 KindInternal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}
