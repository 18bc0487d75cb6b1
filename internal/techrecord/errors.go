package techrecord

import "errors"

// 错误分层：
// - ErrNotFound：过滤/查询结果为空，出站映射为 404（空响应体）
// - ErrMalformedEncoding：扁平键结构不一致，解码必须整体失败，不产出残缺文档
// - 其余一律视为内部错误，出站映射为 500
var (
	ErrNotFound          = errors.New("no matching tech records")
	ErrMalformedEncoding = errors.New("malformed flat row encoding")
)

// BadRequestError 入参不合法（非法 status / searchCriteria / 校验失败）。
type BadRequestError struct {
	Msg string
}

func (e *BadRequestError) Error() string {
	return e.Msg
}
