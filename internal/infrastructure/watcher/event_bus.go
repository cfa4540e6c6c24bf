// Package watcher 提供文件监听和事件分发功能
package watcher

import (
	"log/slog"
	"sync"

	"github.com/knowbase/backend/internal/domain/events"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

// subscription 一条订阅记录，id 用于退订定位
type subscription struct {
	id      uint64
	handler events.Handler
}

// eventBusImpl EventBus 的实现
// 发布是异步的，每个处理器在独立 goroutine 中执行，panic 与错误互不影响。
type eventBusImpl struct {
	mu     sync.RWMutex
	subs   map[events.EventType][]subscription
	nextID uint64
	closed bool
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewEventBus 创建新的事件总线实例
func NewEventBus() events.EventBus {
	return &eventBusImpl{
		subs:   make(map[events.EventType][]subscription),
		logger: log.NewModuleLogger("watcher", "event_bus"),
	}
}

// Subscribe 订阅特定类型的事件，返回取消订阅函数
func (b *eventBusImpl) Subscribe(eventType events.EventType, handler events.Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.unsubscribe(eventType, id)
	}
}

// SubscribeMultiple 订阅多个类型的事件，返回取消所有订阅的函数
func (b *eventBusImpl) SubscribeMultiple(eventTypes []events.EventType, handler events.Handler) func() {
	cancels := make([]func(), 0, len(eventTypes))
	for _, eventType := range eventTypes {
		cancels = append(cancels, b.Subscribe(eventType, handler))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

func (b *eventBusImpl) unsubscribe(eventType events.EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish 异步发布事件
func (b *eventBusImpl) Publish(event events.Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]subscription, len(b.subs[event.Type()]))
	copy(subs, b.subs[event.Type()])
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	b.logger.Debug("发布事件", "type", event.Type(), "handlers", len(subs))

	for _, s := range subs {
		b.wg.Add(1)
		go b.dispatch(event, s.handler)
	}
}

// dispatch 在独立 goroutine 中执行单个处理器
func (b *eventBusImpl) dispatch(event events.Event, handler events.Handler) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("事件处理器 panic", "type", event.Type(), "panic", r)
		}
	}()

	if err := handler.HandleEvent(event); err != nil {
		b.logger.Error("事件处理失败", "type", event.Type(), "error", err)
	}
}

// Close 停止接收新事件并等待进行中的处理完成
func (b *eventBusImpl) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("事件总线已关闭")
}
