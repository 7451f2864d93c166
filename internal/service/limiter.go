package service

import (
	"sync"

	"golang.org/x/time/rate"
)

// SendLimiter 按用户限制发送频率
type SendLimiter struct {
	mu    sync.Mutex
	m     map[int64]*rate.Limiter
	rps   float64
	burst int
}

// NewSendLimiter rps<=0 时不限流
func NewSendLimiter(rps float64, burst int) *SendLimiter {
	if burst <= 0 {
		burst = 10
	}
	return &SendLimiter{m: make(map[int64]*rate.Limiter), rps: rps, burst: burst}
}

func (p *SendLimiter) get(userID int64) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[userID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[userID] = l
	return l
}

// Allow 是否允许该用户再发送一条
func (p *SendLimiter) Allow(userID int64) bool {
	if p == nil || p.rps <= 0 {
		return true
	}
	return p.get(userID).Allow()
}
