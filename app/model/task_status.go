package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// TaskStatus 提示词任务状态
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"    // 待提交（初始状态）
	TaskStatusSubmitting TaskStatus = "submitting" // 提交中，只能由 Submit 进入
	TaskStatusSubmitted  TaskStatus = "submitted"  // 已投递给生成节点
	TaskStatusProcessing TaskStatus = "processing" // 生成中
	TaskStatusProcessed  TaskStatus = "processed"  // 已完成
	TaskStatusDiscarded  TaskStatus = "discarded"  // 已丢弃
	TaskStatusErrored    TaskStatus = "errored"    // 出错
)

// TaskStatuses 全部合法状态，按典型流转顺序排列
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusSubmitting,
	TaskStatusSubmitted,
	TaskStatusProcessing,
	TaskStatusProcessed,
	TaskStatusDiscarded,
	TaskStatusErrored,
}

// ParseTaskStatus 解析状态字符串，非法值返回错误
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid task status %q", s)
	}
	return status, nil
}

// Valid 判断是否为合法状态
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusSubmitting, TaskStatusSubmitted, TaskStatusProcessing,
		TaskStatusProcessed, TaskStatusDiscarded, TaskStatusErrored:
		return true
	}
	return false
}

// IsTerminal 是否为终态
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusProcessed, TaskStatusDiscarded, TaskStatusErrored:
		return true
	}
	return false
}

func (s TaskStatus) String() string {
	return string(s)
}

// Value 写库前校验，拒绝非法状态
func (s TaskStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid task status %q", string(s))
	}
	return string(s), nil
}

// Scan 读库时校验
func (s *TaskStatus) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return fmt.Errorf("scan task status: %w", err)
	}
	parsed, err := ParseTaskStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTaskStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TaskResult 生成结果，由生成节点在结束时写入
type TaskResult string

const (
	TaskResultSuccess TaskResult = "success"
	TaskResultFail    TaskResult = "fail"
	TaskResultError   TaskResult = "error"
	TaskResultPanic   TaskResult = "panic"
)

// TaskResults 全部合法结果
var TaskResults = []TaskResult{
	TaskResultSuccess,
	TaskResultFail,
	TaskResultError,
	TaskResultPanic,
}

// ParseTaskResult 解析结果字符串，非法值返回错误
func ParseTaskResult(s string) (TaskResult, error) {
	result := TaskResult(s)
	if !result.Valid() {
		return "", fmt.Errorf("invalid task result %q", s)
	}
	return result, nil
}

// Valid 判断是否为合法结果
func (r TaskResult) Valid() bool {
	switch r {
	case TaskResultSuccess, TaskResultFail, TaskResultError, TaskResultPanic:
		return true
	}
	return false
}

func (r TaskResult) String() string {
	return string(r)
}

// Value 写库前校验，拒绝非法结果
func (r TaskResult) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid task result %q", string(r))
	}
	return string(r), nil
}

// Scan 读库时校验
func (r *TaskResult) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return fmt.Errorf("scan task result: %w", err)
	}
	parsed, err := ParseTaskResult(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r *TaskResult) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTaskResult(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported type %T", src)
	}
}
