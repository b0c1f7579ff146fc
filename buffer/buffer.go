// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

// Package buffer provides the growable byte buffer that carries every
// message through the netlink and vconn layers.  A buffer is a single
// allocation divided into headroom, payload, and tailroom; codecs append
// to the tail, transports pull from the head.
package buffer

import "fmt"

type Buffer struct {
	b    []byte
	head int // headroom bytes before the payload
	size int // payload bytes
}

// New returns an empty buffer with at least the given tailroom.
func New(capacity int) *Buffer {
	return &Buffer{b: make([]byte, capacity)}
}

// NewWithHeadroom returns an empty buffer whose payload begins headroom
// bytes into the allocation, leaving room to prepend later without copying.
func NewWithHeadroom(capacity, headroom int) *Buffer {
	if headroom > capacity {
		capacity = headroom
	}
	return &Buffer{b: make([]byte, capacity), head: headroom}
}

func (b *Buffer) Size() int     { return b.size }
func (b *Buffer) Headroom() int { return b.head }
func (b *Buffer) Tailroom() int { return len(b.b) - b.head - b.size }
func (b *Buffer) Capacity() int { return len(b.b) }

// Data returns the payload.  The slice is invalidated by any operation
// that may change the buffer's capacity.
func (b *Buffer) Data() []byte { return b.b[b.head : b.head+b.size] }

// Tail returns the tailroom following the payload.
func (b *Buffer) Tail() []byte { return b.b[b.head+b.size:] }

// ReserveTailroom reallocates as needed so that at least n bytes may be
// appended without further growth.  The payload and headroom are preserved.
func (b *Buffer) ReserveTailroom(n int) {
	if b.Tailroom() >= n {
		return
	}
	c := make([]byte, b.head+b.size+n)
	copy(c[b.head:], b.b[b.head:b.head+b.size])
	b.b = c
}

// ReserveHeadroom reallocates as needed so that at least n bytes may be
// prepended without further growth.
func (b *Buffer) ReserveHeadroom(n int) {
	if b.head >= n {
		return
	}
	c := make([]byte, n+b.size+b.Tailroom())
	copy(c[n:], b.b[b.head:b.head+b.size])
	b.b = c
	b.head = n
}

// PutUninit extends the payload by n uninitialized bytes and returns
// them.  The returned slice is invalidated by any operation that may
// change the buffer's capacity.
func (b *Buffer) PutUninit(n int) []byte {
	b.ReserveTailroom(n)
	p := b.b[b.head+b.size : b.head+b.size+n]
	b.size += n
	return p
}

// Put appends a copy of p to the payload.
func (b *Buffer) Put(p []byte) {
	copy(b.PutUninit(len(p)), p)
}

// PushUninit prepends n uninitialized bytes to the payload and returns
// them.
func (b *Buffer) PushUninit(n int) []byte {
	b.ReserveHeadroom(n)
	b.head -= n
	b.size += n
	return b.b[b.head : b.head+n]
}

// Push prepends a copy of p to the payload.
func (b *Buffer) Push(p []byte) {
	copy(b.PushUninit(len(p)), p)
}

// Pull advances the payload past its first n bytes.
func (b *Buffer) Pull(n int) {
	if n > b.size {
		panic(fmt.Errorf("pull %d bytes from %d byte buffer", n, b.size))
	}
	b.head += n
	b.size -= n
}

// Advance extends the payload by n bytes already present in the tailroom,
// e.g. after a read(2) into Tail().
func (b *Buffer) Advance(n int) {
	if n > b.Tailroom() {
		panic(fmt.Errorf("advance %d bytes past %d byte tailroom",
			n, b.Tailroom()))
	}
	b.size += n
}

// At returns n bytes of payload starting at offset, or nil if the payload
// is too short.
func (b *Buffer) At(offset, n int) []byte {
	if offset+n > b.size {
		return nil
	}
	return b.b[b.head+offset : b.head+offset+n]
}

// AtAssert is like At but panics if the payload is too short.
func (b *Buffer) AtAssert(offset, n int) []byte {
	p := b.At(offset, n)
	if p == nil {
		panic(fmt.Errorf("%d bytes at offset %d exceeds %d byte buffer",
			n, offset, b.size))
	}
	return p
}

// Reinit resets the buffer to empty with at least capacity bytes of
// tailroom.
func (b *Buffer) Reinit(capacity int) {
	if len(b.b) < capacity {
		b.b = make([]byte, capacity)
	}
	b.head = 0
	b.size = 0
}

// Reset resets the buffer to empty, keeping its allocation.
func (b *Buffer) Reset() {
	b.head = 0
	b.size = 0
}
