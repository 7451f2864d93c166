package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"sync"
	"syscall"
	"time"

	"textenger/internal/chatsync"
	"textenger/internal/model"
	"textenger/pkg/client"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// -------------------- 进程监控 --------------------

type SystemStats struct {
	Timestamp  time.Time
	HeapMB     float64
	Goroutines int
}

type Monitor struct {
	mu       sync.Mutex
	stats    []SystemStats
	interval time.Duration
}

func NewMonitor(interval time.Duration) *Monitor {
	return &Monitor{stats: make([]SystemStats, 0, 512), interval: interval}
}

func (m *Monitor) collect() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.mu.Lock()
	m.stats = append(m.stats, SystemStats{
		Timestamp:  time.Now(),
		HeapMB:     float64(ms.HeapAlloc) / 1024 / 1024,
		Goroutines: runtime.NumGoroutine(),
	})
	m.mu.Unlock()
}

func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.collect()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) Report() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stats) == 0 {
		return
	}
	var maxHeap float64
	var maxGo int
	for _, s := range m.stats {
		maxHeap = max(maxHeap, s.HeapMB)
		maxGo = max(maxGo, s.Goroutines)
	}
	fmt.Println("\n=== 压测进程资源 ===")
	fmt.Printf("峰值堆内存: %.1fMB, 峰值Goroutine: %d\n", maxHeap, maxGo)
}

// -------------------- 回显延迟统计 --------------------

// EchoStats 发送到自己订阅收到回显的延迟
type EchoStats struct {
	mu        sync.Mutex
	latencies []time.Duration
	failed    int
	delivered int
}

func (s *EchoStats) Add(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, latency)
}

func (s *EchoStats) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
}

func (s *EchoStats) Delivered(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered += n
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)-1) * p)
	return sorted[i]
}

func (s *EchoStats) Report(took time.Duration, expectedDeliveries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := slices.Clone(s.latencies)
	slices.Sort(sorted)

	fmt.Println("\n=== 回显延迟 ===")
	fmt.Printf("耗时: %v\n", took)
	fmt.Printf("发送成功: %d 失败: %d\n", len(sorted), s.failed)
	if len(sorted) > 0 {
		fmt.Printf("延迟 p50: %v p90: %v p99: %v 最大: %v\n",
			percentile(sorted, 0.5), percentile(sorted, 0.9), percentile(sorted, 0.99), sorted[len(sorted)-1])
		fmt.Printf("吞吐: %.2f msg/s\n", float64(len(sorted))/took.Seconds())
	}
	if expectedDeliveries > 0 {
		fmt.Printf("扇出送达: %d/%d (%.2f%%)\n", s.delivered, expectedDeliveries,
			float64(s.delivered)/float64(expectedDeliveries)*100)
	}
}

// -------------------- 压测用户 --------------------

type benchUser struct {
	c   *client.Client
	id  int64
	sub chatsync.Subscription

	mu      sync.Mutex
	arrived map[int64]time.Time
}

// listen 记录每条事件到达的时间
func (u *benchUser) listen(events <-chan model.InsertEvent, stats *EchoStats) {
	n := 0
	for ev := range events {
		u.mu.Lock()
		u.arrived[ev.Message.ID] = time.Now()
		u.mu.Unlock()
		n++
	}
	stats.Delivered(n)
}

func (u *benchUser) arrival(id int64) (time.Time, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	t, ok := u.arrived[id]
	return t, ok
}

func main() {
	server := flag.String("server", "http://localhost:8080", "服务端地址")
	users := flag.Int("users", 10, "并发用户数")
	perUser := flag.Int("messages", 20, "每个用户发送的消息数")
	rps := flag.Float64("rate", 2, "每个用户每秒发送条数")
	channelID := flag.Int64("channel", 0, "目标频道ID，默认随机")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *channelID <= 0 {
		*channelID = int64(uuid.New().ID()) + 1
	}
	scope := model.ChannelScope(*channelID)
	runID := uuid.NewString()[:8]

	fmt.Println("=== Textenger 实时回显压测 ===")
	fmt.Printf("开始时间: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Printf("目标: %s 会话: %s 用户: %d 每用户消息: %d 速率: %.1f/s\n", *server, scope.Key(), *users, *perUser, *rps)

	monCtx, stopMon := context.WithCancel(ctx)
	mon := NewMonitor(time.Second)
	go mon.Run(monCtx)

	// 1. 注册并订阅
	stats := &EchoStats{}
	bench := make([]*benchUser, *users)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i := range bench {
		g.Go(func() error {
			c, err := client.New(*server)
			if err != nil {
				return err
			}
			name := fmt.Sprintf("bench-%s-%d", runID, i)
			p, err := c.Register(gctx, name, name+"@bench.local", "", "bench-"+runID)
			if err != nil {
				return fmt.Errorf("注册 %s 失败: %w", name, err)
			}
			sub, err := c.Subscribe(gctx, scope)
			if err != nil {
				return fmt.Errorf("订阅失败: %w", err)
			}
			u := &benchUser{c: c, id: p.ID, sub: sub, arrived: make(map[int64]time.Time)}
			go u.listen(sub.Events(), stats)
			bench[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "准备阶段失败:", err)
		os.Exit(1)
	}

	// 2. 限速发送并等待自己的回显
	start := time.Now()
	g, gctx = errgroup.WithContext(ctx)
	for i, u := range bench {
		g.Go(func() error {
			limiter := rate.NewLimiter(rate.Limit(*rps), 1)
			for j := 0; j < *perUser; j++ {
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
				draft := &model.Message{AuthorID: u.id, Content: fmt.Sprintf("bench %d/%d from %d", j, *perUser, i)}
				scope.Stamp(draft)
				sentAt := time.Now()
				msg, err := u.c.InsertMessage(gctx, draft)
				if err != nil {
					stats.Fail()
					continue
				}
				deadline := time.Now().Add(5 * time.Second)
				for {
					if at, ok := u.arrival(msg.ID); ok {
						stats.Add(at.Sub(sentAt))
						break
					}
					if time.Now().After(deadline) {
						stats.Fail()
						break
					}
					time.Sleep(2 * time.Millisecond)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	took := time.Since(start)

	// 留出时间让尾部事件送达
	time.Sleep(time.Second)
	for _, u := range bench {
		_ = u.sub.Close()
	}
	stopMon()

	// 每条消息应送达所有订阅者
	sent := *users * *perUser
	stats.Report(took, sent*(*users))
	mon.Report()
	fmt.Println("\n=== 测试完成 ===")
}
