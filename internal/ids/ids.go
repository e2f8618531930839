package ids

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	once sync.Once
	node *snowflake.Node
)

// nodeFromEnv reads SNOWFLAKE_NODE, defaulting to node 1.
func nodeFromEnv() int64 {
	v := os.Getenv("SNOWFLAKE_NODE")
	if v == "" {
		return 1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 1
	}
	return n
}

// Next returns a time-ordered snowflake ID. IDs generated by one process are
// strictly increasing, which the message store uses as an ordering tiebreak.
func Next() int64 {
	once.Do(func() {
		n, err := snowflake.NewNode(nodeFromEnv())
		if err != nil {
			// out-of-range node: fall back to node 1 so IDs are still produced
			n, _ = snowflake.NewNode(1)
		}
		node = n
	})
	return node.Generate().Int64()
}
