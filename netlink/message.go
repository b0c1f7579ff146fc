// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

// Package netlink builds and parses Netlink and Generic Netlink messages
// in a buffer.Buffer and moves them over a raw netlink socket, layering a
// reliable request/reply transaction on top of the unreliable datagram
// service.
package netlink

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/platinasystems/log"
	"github.com/platinasystems/oflow/buffer"
)

// Header is the fixed nlmsghdr that begins every netlink message.  All
// fields are host byte order.
type Header struct {
	Len      uint32
	Type     MsgType
	Flags    HeaderFlags
	Sequence uint32
	Pid      uint32
}

const SizeofHeader = 16

// GenlHeader follows the Header in every Generic Netlink message.
type GenlHeader struct {
	Cmd      uint8
	Version  uint8
	Reserved uint16
}

const SizeofGenlHeader = 4

// MsgHeader returns the Header at the head of msg, which must be at
// least as large as a Header.  The returned pointer aliases the buffer
// payload and is invalidated by any operation that may change its
// capacity.
func MsgHeader(msg *buffer.Buffer) *Header {
	return (*Header)(unsafe.Pointer(&msg.AtAssert(0, SizeofHeader)[0]))
}

// MsgGenlHeader returns the GenlHeader just past msg's Header, or nil if
// msg is too short to contain one.
func MsgGenlHeader(msg *buffer.Buffer) *GenlHeader {
	p := msg.At(SizeofHeader, SizeofGenlHeader)
	if p == nil {
		return nil
	}
	return (*GenlHeader)(unsafe.Pointer(&p[0]))
}

// MsgErr decodes msg as an NLMSG_ERROR message.  It returns the errno
// carried by the message (0 for an ACK) and true, or 0 and false if msg
// is not an NLMSG_ERROR message.  A malformed or out-of-range error code
// is reported as EPROTO.
func MsgErr(msg *buffer.Buffer) (syscall.Errno, bool) {
	if MsgHeader(msg).Type != NLMSG_ERROR {
		return 0, false
	}
	p := msg.At(SizeofHeader, 4)
	if p == nil {
		log.Print("err", "netlink: truncated NLMSG_ERROR, ",
			msg.Size(), " bytes")
		return syscall.EPROTO, true
	}
	code := *(*int32)(unsafe.Pointer(&p[0]))
	if code > 0 || code == -0x80000000 {
		return syscall.EPROTO, true
	}
	return syscall.Errno(-code), true
}

// reserve ensures msg has tailroom for size bytes plus netlink padding.
func reserve(msg *buffer.Buffer, size int) {
	msg.ReserveTailroom(messageAlignLen(size))
}

// putUninit appends size bytes plus netlink padding to msg and returns
// the unpadded region.  Padding bytes are zeroed.
func putUninit(msg *buffer.Buffer, size int) []byte {
	pad := messageAlignLen(size) - size
	p := msg.PutUninit(size + pad)
	for i := size; i < size+pad; i++ {
		p[i] = 0
	}
	return p[:size]
}

// PutHeader begins msg, which must be empty, with a Header carrying the
// given type and flags.  The sequence number is drawn from the
// process-wide counter and the pid is s's; the length field is left zero
// and finalized by Send.  expectedPayload sizes the initial tailroom
// reservation and may be zero when unknown.
func PutHeader(msg *buffer.Buffer, s *Socket, expectedPayload int,
	t MsgType, flags HeaderFlags) {
	if msg.Size() != 0 {
		panic(fmt.Errorf("netlink: header put into %d byte message",
			msg.Size()))
	}
	reserve(msg, SizeofHeader+expectedPayload)
	h := (*Header)(unsafe.Pointer(&putUninit(msg, SizeofHeader)[0]))
	h.Len = 0
	h.Type = t
	h.Flags = flags
	h.Sequence = nextSequence()
	h.Pid = s.pid
}

// PutGenlHeader begins msg, which must be empty, with a Header for the
// given Generic Netlink family followed by a GenlHeader with the given
// cmd and version.
func PutGenlHeader(msg *buffer.Buffer, s *Socket, expectedPayload int,
	family int, flags HeaderFlags, cmd, version uint8) {
	PutHeader(msg, s, SizeofGenlHeader+expectedPayload,
		MsgType(family), flags)
	g := (*GenlHeader)(unsafe.Pointer(&putUninit(msg, SizeofGenlHeader)[0]))
	g.Cmd = cmd
	g.Version = version
	g.Reserved = 0
}
