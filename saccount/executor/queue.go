package executor

import (
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gammazero/workerpool"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// laneQueue serializes the build to submit section per account and nonce
// lane. Each lane gets a single worker, so nonces handed out on a lane are
// strictly increasing. Different lanes run fully parallel.
type laneQueue struct {
	pools cmap.ConcurrentMap[string, *workerpool.WorkerPool]
}

func newLaneQueue() *laneQueue {
	return &laneQueue{
		pools: cmap.New[*workerpool.WorkerPool](),
	}
}

func laneKey(account ethcommon.Address, nonceKey *big.Int) string {
	lane := "0"
	if nonceKey != nil {
		lane = nonceKey.String()
	}
	return strings.ToLower(account.String()) + "-" + lane
}

// run executes fn on the lane's worker and waits for it to finish.
func (queue *laneQueue) run(account ethcommon.Address, nonceKey *big.Int, fn func()) {
	queue.pool(laneKey(account, nonceKey)).SubmitWait(fn)
}

func (queue *laneQueue) pool(key string) *workerpool.WorkerPool {
	if pool, ok := queue.pools.Get(key); ok {
		return pool
	}
	fresh := workerpool.New(1)
	if queue.pools.SetIfAbsent(key, fresh) {
		return fresh
	}
	// another flow won the race for this lane
	fresh.Stop()
	pool, _ := queue.pools.Get(key)
	return pool
}

func (queue *laneQueue) close() {
	for entry := range queue.pools.IterBuffered() {
		entry.Val.StopWait()
	}
	queue.pools.Clear()
}
