// Package domain 包含组合风险分析服务的领域模型与纯计算核心
package domain

import "fmt"

// ValidationError 输入校验错误
// 在任何计算开始之前抛出，定位到具体字段与取值
type ValidationError struct {
	Field  string // 出错字段
	Value  any    // 出错取值
	Reason string // 拒绝原因
}

// Error 实现 error 接口
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s (value: %v): %s", e.Field, e.Value, e.Reason)
}

// NewValidationError 创建校验错误
func NewValidationError(field string, value any, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// CalculationError 数值计算错误
// 输入格式合法但数值上不可解，例如约束不可行或协方差矩阵奇异
type CalculationError struct {
	Op     string // 出错的计算操作
	Reason string // 出错条件
}

// Error 实现 error 接口
func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculation failed in %s: %s", e.Op, e.Reason)
}

// NewCalculationError 创建计算错误
func NewCalculationError(op, reason string) *CalculationError {
	return &CalculationError{Op: op, Reason: reason}
}
