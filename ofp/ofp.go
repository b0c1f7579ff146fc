// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

// Package ofp has the fixed OpenFlow header that frames every message on
// a switch/controller stream, and constructors for the symmetric
// messages the transport layer itself exchanges.
package ofp

import (
	"encoding/binary"
	"fmt"

	"github.com/platinasystems/oflow/buffer"
)

const Version = 0x01

// Symmetric message types.
const (
	OFPT_HELLO = iota
	OFPT_ERROR
	OFPT_ECHO_REQUEST
	OFPT_ECHO_REPLY
	OFPT_VENDOR
)

// TcpPort is the IANA-assigned OpenFlow controller port of the era.
const TcpPort = 6633

// Header begins every OpenFlow message.  Length counts the whole
// message, header included, in network byte order on the wire.
type Header struct {
	Version uint8
	Type    uint8
	Length  uint16
	Xid     uint32
}

const HeaderLen = 8

func (h *Header) Unmarshal(b []byte) error {
	if len(b) < HeaderLen {
		return fmt.Errorf("ofp: %d byte header", len(b))
	}
	h.Version = b[0]
	h.Type = b[1]
	h.Length = binary.BigEndian.Uint16(b[2:4])
	h.Xid = binary.BigEndian.Uint32(b[4:8])
	return nil
}

func (h *Header) Marshal(b []byte) {
	b[0] = h.Version
	b[1] = h.Type
	binary.BigEndian.PutUint16(b[2:4], h.Length)
	binary.BigEndian.PutUint32(b[4:8], h.Xid)
}

// FrameLength decodes the length field of the header beginning at b.
func FrameLength(b []byte) int {
	return int(binary.BigEndian.Uint16(b[2:4]))
}

// PutHeader begins msg, which must be empty, with a header whose length
// field covers the header plus expectedPayload bytes.  Callers that
// append a different amount must finalize with SetLength.
func PutHeader(msg *buffer.Buffer, typ uint8, xid uint32, expectedPayload int) {
	if msg.Size() != 0 {
		panic(fmt.Errorf("ofp: header put into %d byte message",
			msg.Size()))
	}
	h := Header{
		Version: Version,
		Type:    typ,
		Length:  uint16(HeaderLen + expectedPayload),
		Xid:     xid,
	}
	h.Marshal(msg.PutUninit(HeaderLen))
}

// SetLength finalizes the length field of the header at the head of msg
// to the payload size.
func SetLength(msg *buffer.Buffer) {
	binary.BigEndian.PutUint16(msg.AtAssert(2, 2), uint16(msg.Size()))
}

// NewHello returns a hello message.
func NewHello(xid uint32) *buffer.Buffer {
	msg := buffer.New(HeaderLen)
	PutHeader(msg, OFPT_HELLO, xid, 0)
	return msg
}

// NewEchoRequest returns an echo request carrying the given payload.
func NewEchoRequest(xid uint32, payload []byte) *buffer.Buffer {
	msg := buffer.New(HeaderLen + len(payload))
	PutHeader(msg, OFPT_ECHO_REQUEST, xid, len(payload))
	msg.Put(payload)
	return msg
}

// NewEchoReply returns an echo reply to the given request, echoing its
// xid and payload.
func NewEchoReply(request *buffer.Buffer) *buffer.Buffer {
	var h Header
	h.Unmarshal(request.Data())
	payload := request.Data()[HeaderLen:]
	msg := buffer.New(HeaderLen + len(payload))
	PutHeader(msg, OFPT_ECHO_REPLY, h.Xid, len(payload))
	msg.Put(payload)
	return msg
}
