// Package validation 按当前的生成参数配置校验提示词任务
package validation

import (
	"strings"
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors 收集全部字段错误，不在第一个错误处中断
type Errors []FieldError

// Add 记录字段错误
func (e *Errors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// Merge 合并另一组错误，每个字段只保留最先记录的一条
func (e *Errors) Merge(other Errors) {
	for _, fe := range other {
		if !e.Has(fe.Field) {
			*e = append(*e, fe)
		}
	}
}

// Has 字段是否存在错误
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// For 返回字段的全部错误信息
func (e Errors) For(field string) []string {
	var messages []string
	for _, fe := range e {
		if fe.Field == field {
			messages = append(messages, fe.Message)
		}
	}
	return messages
}

// Err 没有错误时返回 nil
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+" "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
