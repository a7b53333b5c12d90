// Package apperr 定义了匹配核心的错误分类。
// 所有对外可见的失败都归入一个稳定的 Kind，处理器据此映射 HTTP 状态码，
// 调用方永远收到结构化错误而不是原始堆栈。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 是机器可读的错误类别。
type Kind string

const (
	// KindEmbeddingUnavailable 表示 Embedding 服务不可达或配置错误，可稍后重试。
	KindEmbeddingUnavailable Kind = "embedding_unavailable"
	// KindNoEmbedding 表示目标实体还没有可用向量（上传内容为空等），与服务失败不同。
	KindNoEmbedding Kind = "no_embedding"
	// KindEmptyInput 表示聚合输入为空，无法形成代表向量。
	KindEmptyInput Kind = "empty_input"
	// KindDegenerateWeights 表示加权平均的权重全为零，加权均值无定义。
	KindDegenerateWeights Kind = "degenerate_weights"
	// KindInvalidFilter 表示过滤条件的值不存在，响应中附带合法取值集合。
	KindInvalidFilter Kind = "invalid_filter"
	// KindInvalidArgument 表示请求参数不合法（如 topK 越界）。
	KindInvalidArgument Kind = "invalid_argument"
	// KindDimensionMismatch 表示向量维度与配置不一致，属于致命配置错误，必须中止查询。
	KindDimensionMismatch Kind = "dimension_mismatch"
	// KindNotFound 表示按 id 查找的记录不存在。
	KindNotFound Kind = "not_found"
	// KindInternal 表示未分类的内部错误。
	KindInternal Kind = "internal"
)

// Error 是带类别的应用错误。Detail 携带类别相关的附加数据
// （例如 invalid_filter 的合法机构列表）。
type Error struct {
	Kind    Kind
	Message string
	Detail  map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap 返回底层原因，保持 errors.Is/As 链可用。
func (e *Error) Unwrap() error { return e.cause }

// New 创建一个不带底层原因的应用错误。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap 创建一个包装底层错误的应用错误。
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetail 附加一项类别相关的数据，返回错误自身便于链式调用。
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Detail == nil {
		e.Detail = make(map[string]interface{})
	}
	e.Detail[key] = value
	return e
}

// KindOf 提取错误的类别；非应用错误返回 KindInternal。
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is 判断错误是否属于指定类别。
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// DetailOf 提取错误的附加数据；没有则返回 nil。
func DetailOf(err error) map[string]interface{} {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Detail
	}
	return nil
}
