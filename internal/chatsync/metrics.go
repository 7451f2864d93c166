package chatsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 同步过程指标，按会话类型区分
var (
	mergedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "textenger",
		Subsystem: "chatsync",
		Name:      "merged_messages_total",
		Help:      "Messages added to a conversation store.",
	}, []string{"kind", "source"})

	duplicateMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "textenger",
		Subsystem: "chatsync",
		Name:      "duplicate_messages_total",
		Help:      "Live or backfilled messages dropped because the store already held them.",
	}, []string{"kind"})

	staleResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "textenger",
		Subsystem: "chatsync",
		Name:      "stale_results_total",
		Help:      "Load results or live events discarded after the conversation switched scope.",
	}, []string{"kind"})

	reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "textenger",
		Subsystem: "chatsync",
		Name:      "reconnects_total",
		Help:      "Realtime subscriptions re-established after a drop.",
	}, []string{"kind"})
)
