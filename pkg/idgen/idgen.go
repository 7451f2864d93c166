package idgen

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
	err  error
)

// Init 初始化snowflake节点，重复调用只生效一次
func Init(nodeID int64) error {
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New 生成时间有序的全局唯一ID
// 未调用 Init 时使用 0 号节点
func New() int64 {
	_ = Init(0)
	return node.Generate().Int64()
}

// Time 从ID中解析出生成时间（毫秒精度）
func Time(id int64) time.Time {
	return time.UnixMilli(snowflake.ID(id).Time())
}
