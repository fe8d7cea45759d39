package engine

import "time"

// deadline is one pending window expiry. The coordinator owns a single
// queue of these, polled by one background loop, instead of an OS timer
// per grouping key.
type deadline struct {
	at  time.Time
	key string
}

// deadlineQueue implements container/heap.Interface ordered by expiry.
type deadlineQueue []deadline

func (q deadlineQueue) Len() int           { return len(q) }
func (q deadlineQueue) Less(i, j int) bool { return q[i].at.Before(q[j].at) }
func (q deadlineQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *deadlineQueue) Push(x any)        { *q = append(*q, x.(deadline)) }
func (q *deadlineQueue) Pop() any {
	old := *q
	n := len(old)
	d := old[n-1]
	*q = old[:n-1]
	return d
}
