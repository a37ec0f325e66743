package sched

import (
	"container/heap"
	"time"
)

type item struct {
	at    time.Duration
	seq   uint64
	timer *Timer
	index int
}

// taskQueue orders items by deadline, then by arming order.
type taskQueue []*item

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	it := x.(*item)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}

func (q taskQueue) peek() *item {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

var _ heap.Interface = (*taskQueue)(nil)
