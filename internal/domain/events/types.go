// Package events 定义领域事件类型和接口
// 用于系统内部的事件驱动通信
package events

import "time"

// EventType 事件类型标识
type EventType string

// 知识库文件相关事件类型
const (
	// KnowledgeFileCreated 知识库文件创建事件
	KnowledgeFileCreated EventType = "knowledge.file.created"
	// KnowledgeFileModified 知识库文件修改事件
	KnowledgeFileModified EventType = "knowledge.file.modified"
	// KnowledgeFileDeleted 知识库文件删除事件
	KnowledgeFileDeleted EventType = "knowledge.file.deleted"
)

// Event 领域事件接口
// 所有事件类型都必须实现此接口
type Event interface {
	// Type 返回事件类型
	Type() EventType
	// Timestamp 返回事件发生时间
	Timestamp() time.Time
}
