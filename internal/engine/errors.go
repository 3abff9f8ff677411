package engine

import (
	"errors"
	"fmt"
)

// 错误分类（见计划原因码）：
//   - 软失败（数据不足、风控拒绝、熔断开启）吸收为 HOLD 计划，不向上抛；
//   - 硬失败（协作方不可用、状态不变量被破坏）原样上抛，本次调用不落任何状态。

// CollaboratorError 表示价格/余额拉取或下单无法完成。
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// InvalidStateError 表示持久状态违反了不变量（正常运行不应出现），
// 需要运维介入，引擎不尝试修复。
type InvalidStateError struct {
	Err error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid persisted state: %v", e.Err)
}

func (e *InvalidStateError) Unwrap() error { return e.Err }

// IsHard 报告错误是否属于需调度方处理的硬失败。
func IsHard(err error) bool {
	var ce *CollaboratorError
	var ie *InvalidStateError
	return errors.As(err, &ce) || errors.As(err, &ie)
}
