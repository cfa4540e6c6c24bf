package events

// Handler 处理一条已发布的事件
// 返回的 error 只做日志记录，事件不会重试。
type Handler interface {
	HandleEvent(event Event) error
}

// HandlerFunc 把普通函数适配成 Handler
type HandlerFunc func(event Event) error

// HandleEvent 实现 Handler 接口
func (f HandlerFunc) HandleEvent(event Event) error {
	return f(event)
}

// EventBus 知识库内部的事件发布订阅通道
// 文件监听方发布变更事件，索引方订阅并增量重建。
type EventBus interface {
	// Subscribe 订阅一种事件类型，返回取消订阅的函数
	Subscribe(eventType EventType, handler Handler) (unsubscribe func())

	// SubscribeMultiple 用同一个处理器订阅多种事件类型
	SubscribeMultiple(eventTypes []EventType, handler Handler) (unsubscribe func())

	// Publish 异步发布事件给所有匹配的订阅者
	Publish(event Event)

	// Close 停止接收新事件并等待进行中的处理完成
	Close()
}
