package queue

import "github.com/shyifrah/kas/internal/message"

const numPriorities = message.MaxPriority - message.MinPriority + 1

type bucket struct {
	items []*message.Message
	head  int
}

func (b *bucket) len() int { return len(b.items) - b.head }

func (b *bucket) pushBack(m *message.Message) { b.items = append(b.items, m) }

func (b *bucket) pushFront(m *message.Message) {
	if b.head > 0 {
		b.head--
		b.items[b.head] = m
		return
	}
	b.items = append([]*message.Message{m}, b.items...)
}

func (b *bucket) removeAt(i int) *message.Message {
	idx := b.head + i
	m := b.items[idx]
	if i == 0 {
		b.items[idx] = nil
		b.head++
	} else {
		copy(b.items[idx:], b.items[idx+1:])
		b.items[len(b.items)-1] = nil
		b.items = b.items[:len(b.items)-1]
	}
	if b.head == len(b.items) {
		b.items = b.items[:0]
		b.head = 0
	} else if b.head > 32 && b.head*2 > len(b.items) {
		n := copy(b.items, b.items[b.head:])
		clear(b.items[n:])
		b.items = b.items[:n]
		b.head = 0
	}
	return m
}

// Deque is a double-ended message sequence split into one FIFO per
// priority. It is not safe for concurrent use.
type Deque struct {
	buckets [numPriorities]bucket
	size    int
}

func slot(priority int) int {
	switch {
	case priority < message.MinPriority:
		priority = message.MinPriority
	case priority > message.MaxPriority:
		priority = message.MaxPriority
	}
	return priority - message.MinPriority
}

// Len returns the number of messages.
func (d *Deque) Len() int { return d.size }

// PushBack appends m behind every message of the same priority.
func (d *Deque) PushBack(m *message.Message) {
	d.buckets[slot(m.Priority)].pushBack(m)
	d.size++
}

// PushFront puts m ahead of every message of the same priority.
func (d *Deque) PushFront(m *message.Message) {
	d.buckets[slot(m.Priority)].pushFront(m)
	d.size++
}

// PopFront removes the next message in service order.
func (d *Deque) PopFront() *message.Message {
	return d.PopFirst(nil)
}

// PopFirst removes the first message in service order accepted by match. A
// nil match accepts everything.
func (d *Deque) PopFirst(match func(*message.Message) bool) *message.Message {
	for p := numPriorities - 1; p >= 0; p-- {
		b := &d.buckets[p]
		for i := 0; i < b.len(); i++ {
			if match == nil || match(b.items[b.head+i]) {
				d.size--
				return b.removeAt(i)
			}
		}
	}
	return nil
}

// PeekFront returns the next message without removing it.
func (d *Deque) PeekFront() *message.Message {
	for p := numPriorities - 1; p >= 0; p-- {
		if b := &d.buckets[p]; b.len() > 0 {
			return b.items[b.head]
		}
	}
	return nil
}

// Snapshot returns the messages in service order.
func (d *Deque) Snapshot() []*message.Message {
	out := make([]*message.Message, 0, d.size)
	for p := numPriorities - 1; p >= 0; p-- {
		b := &d.buckets[p]
		out = append(out, b.items[b.head:]...)
	}
	return out
}

// Clear drops every message and returns how many were dropped.
func (d *Deque) Clear() int {
	n := d.size
	d.buckets = [numPriorities]bucket{}
	d.size = 0
	return n
}
