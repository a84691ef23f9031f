package transport

// This file provides the ordered idle list backing the socket pool.
//
// It combines a binary min-heap (ordered by release timestamp, stalest
// first) with a map for O(1) membership checks, so the reaper can walk the
// oldest sockets without scanning and checkout can pop in O(log n).
//
// Not thread-safe; the pool serializes access under its mutex.

import (
	"container/heap"
)

// idleConn represents one idle socket together with the moment it was
// released back to the pool
type idleConn struct {
	sock     *FramedSocket
	released int64 // unix nanoseconds of the last checkin
	index    int   // index in the heap, maintained by heap package
}

// connHeap implements heap.Interface over idle sockets
type connHeap struct {
	items    []*idleConn
	itemsMap map[*FramedSocket]*idleConn
}

// newConnHeap creates an empty idle list
func newConnHeap() *connHeap {
	return &connHeap{
		items:    make([]*idleConn, 0),
		itemsMap: make(map[*FramedSocket]*idleConn),
	}
}

// Len returns the number of idle sockets (part of heap.Interface)
func (ch *connHeap) Len() int { return len(ch.items) }

// Less orders by release time, oldest first (part of heap.Interface)
func (ch *connHeap) Less(i, j int) bool {
	return ch.items[i].released < ch.items[j].released
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (ch *connHeap) Swap(i, j int) {
	ch.items[i], ch.items[j] = ch.items[j], ch.items[i]
	ch.items[i].index = i
	ch.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (ch *connHeap) Push(x interface{}) {
	n := len(ch.items)
	item := x.(*idleConn)
	item.index = n
	ch.items = append(ch.items, item)
	ch.itemsMap[item.sock] = item
}

// Pop removes and returns the stalest item (part of heap.Interface)
func (ch *connHeap) Pop() interface{} {
	old := ch.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	ch.items = old[:n-1]
	delete(ch.itemsMap, item.sock)
	return item
}

// AddConn inserts a socket with its release timestamp, or refreshes the
// timestamp if the socket is already idle
func (ch *connHeap) AddConn(sock *FramedSocket, released int64) {
	if item, exists := ch.itemsMap[sock]; exists {
		item.released = released
		heap.Fix(ch, item.index)
		return
	}
	heap.Push(ch, &idleConn{sock: sock, released: released})
}

// PopStalest removes and returns the socket idle the longest
func (ch *connHeap) PopStalest() (*FramedSocket, bool) {
	if len(ch.items) == 0 {
		return nil, false
	}
	item := heap.Pop(ch).(*idleConn)
	return item.sock, true
}

// Peek returns the stalest item without removing it
func (ch *connHeap) Peek() (*idleConn, bool) {
	if len(ch.items) == 0 {
		return nil, false
	}
	return ch.items[0], true
}

// Contains checks whether a socket is currently idle
func (ch *connHeap) Contains(sock *FramedSocket) bool {
	_, exists := ch.itemsMap[sock]
	return exists
}
