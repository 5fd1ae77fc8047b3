package merge

import "container/heap"

// queueItem is one pending merge waiting for an active-set slot.
type queueItem struct {
	cmd      Command
	onReply  func(Reply)
	arrival  uint64
	heapIdx  int
}

// pendingQueue orders queued merges by (priority ascending, arrival
// order) — spec.md §4.2: "priority queue of pending merges ordered by
// (priority ascending, arrival order)"; a lower numeric priority value
// is more urgent (scenario 3: ascending priority value = higher
// priority).
type pendingQueue []*queueItem

func (q pendingQueue) Len() int { return len(q) }

func (q pendingQueue) Less(i, j int) bool {
	if q[i].cmd.Priority != q[j].cmd.Priority {
		return q[i].cmd.Priority < q[j].cmd.Priority
	}
	return q[i].arrival < q[j].arrival
}

func (q pendingQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapIdx = i
	q[j].heapIdx = j
}

func (q *pendingQueue) Push(x any) {
	item := x.(*queueItem)
	item.heapIdx = len(*q)
	*q = append(*q, item)
}

func (q *pendingQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

var _ heap.Interface = (*pendingQueue)(nil)
