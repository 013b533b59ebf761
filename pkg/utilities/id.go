package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NodeIDFromEnv reads the snowflake node id from SNOWFLAKE_NODE, defaulting to 1.
func NodeIDFromEnv() int64 {
	nodeEnv := os.Getenv("SNOWFLAKE_NODE")
	if nodeEnv == "" {
		return 1
	}
	nodeID, err := strconv.ParseInt(nodeEnv, 10, 64)
	if err != nil {
		return 1
	}
	return nodeID
}

// NextID returns a snowflake id from the process-wide node. The node is
// created lazily from SNOWFLAKE_NODE; an invalid node id falls back to node 1.
func NextID() int64 {
	nodeOnce.Do(func() {
		n, err := snowflake.NewNode(NodeIDFromEnv())
		if err != nil {
			n, _ = snowflake.NewNode(1)
		}
		node = n
	})
	return node.Generate().Int64()
}
