package appstate

import (
	"sync"

	"textenger/internal/model"
)

// Listener 状态变化回调，prev 与 next 为变化前后的快照
type Listener func(prev, next State)

// Container 状态容器
type Container struct {
	mu        sync.RWMutex
	state     State
	nextID    int
	listeners map[int]Listener
}

func New(initial State) *Container {
	return &Container{state: initial, listeners: make(map[int]Listener)}
}

func (c *Container) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Dispatch 应用动作并通知订阅者，回调在锁外调用，顺序不保证
func (c *Container) Dispatch(a Action) State {
	c.mu.Lock()
	prev := c.state
	next := Reduce(prev, a)
	c.state = next
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
	return next
}

// Subscribe 注册监听，返回取消函数
func (c *Container) Subscribe(l Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Container) Selection() (model.Scope, bool) {
	return c.State().Selection()
}

// IsFocused 窗口在前台且该作用域正被查看
func (c *Container) IsFocused(scope model.Scope) bool {
	s := c.State()
	if !s.WindowFocused {
		return false
	}
	sel, ok := s.Selection()
	return ok && sel.Key() == scope.Key()
}
