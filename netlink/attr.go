// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

package netlink

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/platinasystems/log"
	"github.com/platinasystems/oflow/buffer"
)

// NlAttr is the header of a netlink TLV attribute.  Len counts the
// header plus the unpadded payload; the next attribute begins at the
// 4-byte aligned offset.
type NlAttr struct {
	Len  uint16
	Kind uint16
}

const SizeofNlAttr = 4

// PutAttrUninit appends an attribute of the given kind with room for
// size payload bytes, plus padding, and returns the uninitialized
// payload.  The returned slice is invalidated by any operation that may
// change msg's capacity.
func PutAttrUninit(msg *buffer.Buffer, kind uint16, size int) []byte {
	total := SizeofNlAttr + size
	if attrAlignLen(total) > 0xffff {
		panic(fmt.Errorf("netlink: %d byte attr payload", size))
	}
	p := putUninit(msg, total)
	a := (*NlAttr)(unsafe.Pointer(&p[0]))
	a.Len = uint16(total)
	a.Kind = kind
	return p[SizeofNlAttr:]
}

// PutAttr appends an attribute of the given kind with a copy of v as its
// payload.
func PutAttr(msg *buffer.Buffer, kind uint16, v []byte) {
	copy(PutAttrUninit(msg, kind, len(v)), v)
}

// PutAttrFlag appends a zero-length attribute whose presence is the
// value.
func PutAttrFlag(msg *buffer.Buffer, kind uint16) {
	PutAttrUninit(msg, kind, 0)
}

func PutAttrUint8(msg *buffer.Buffer, kind uint16, v uint8) {
	PutAttrUninit(msg, kind, 1)[0] = v
}

func PutAttrUint16(msg *buffer.Buffer, kind uint16, v uint16) {
	p := PutAttrUninit(msg, kind, 2)
	*(*uint16)(unsafe.Pointer(&p[0])) = v
}

func PutAttrUint32(msg *buffer.Buffer, kind uint16, v uint32) {
	p := PutAttrUninit(msg, kind, 4)
	*(*uint32)(unsafe.Pointer(&p[0])) = v
}

func PutAttrUint64(msg *buffer.Buffer, kind uint16, v uint64) {
	p := PutAttrUninit(msg, kind, 8)
	*(*uint64)(unsafe.Pointer(&p[0])) = v
}

// PutAttrString appends the string plus its terminating NUL.
func PutAttrString(msg *buffer.Buffer, kind uint16, s string) {
	p := PutAttrUninit(msg, kind, len(s)+1)
	copy(p, s)
	p[len(s)] = 0
}

// PutAttrNested finalizes the nested message's own length field and
// appends the whole message as the attribute payload.
func PutAttrNested(msg *buffer.Buffer, kind uint16, nested *buffer.Buffer) {
	MsgHeader(nested).Len = uint32(nested.Size())
	PutAttr(msg, kind, nested.Data())
}

func attrCheck(v []byte, size int) {
	if len(v) < size {
		panic(fmt.Errorf("netlink: %d byte attr payload, need %d",
			len(v), size))
	}
}

func AttrUint8(v []byte) uint8 {
	attrCheck(v, 1)
	return v[0]
}

func AttrUint16(v []byte) uint16 {
	attrCheck(v, 2)
	return *(*uint16)(unsafe.Pointer(&v[0]))
}

func AttrUint32(v []byte) uint32 {
	attrCheck(v, 4)
	return *(*uint32)(unsafe.Pointer(&v[0]))
}

func AttrUint64(v []byte) uint64 {
	attrCheck(v, 8)
	return *(*uint64)(unsafe.Pointer(&v[0]))
}

// AttrString returns the payload with its terminating NUL removed.
func AttrString(v []byte) string {
	attrCheck(v, 1)
	i := bytes.IndexByte(v, 0)
	if i < 0 {
		panic(fmt.Errorf("netlink: string attr lacks NUL"))
	}
	return string(v[:i])
}

// AttrKind is the semantic kind of an attribute in a parse policy.
type AttrKind int

const (
	NL_A_NO_ATTR AttrKind = iota
	NL_A_UNSPEC
	NL_A_U8
	NL_A_U16
	NL_A_U32
	NL_A_U64
	NL_A_STRING
	NL_A_FLAG
	NL_A_NESTED
	nAttrKinds
)

const maxInt = int(^uint(0) >> 1)

// Default payload length bounds per attribute kind.
var attrLenRange = [nAttrKinds][2]int{
	NL_A_NO_ATTR: {0, maxInt},
	NL_A_UNSPEC:  {0, maxInt},
	NL_A_U8:      {1, 1},
	NL_A_U16:     {2, 2},
	NL_A_U32:     {4, 4},
	NL_A_U64:     {8, 8},
	NL_A_STRING:  {1, maxInt},
	NL_A_FLAG:    {0, maxInt},
	NL_A_NESTED:  {SizeofHeader, maxInt},
}

// Policy describes how the attribute whose nla_type equals its index is
// validated.  Zero MinLen/MaxLen take the kind's default bounds.
type Policy struct {
	Kind     AttrKind
	MinLen   int
	MaxLen   int
	Optional bool
}

// ParsePolicy walks the Generic Netlink attributes of msg and validates
// them against policy, whose index is the attribute type.  On success it
// returns a slice the length of policy whose entries are the payloads of
// the attributes present (nil when absent) and true.  Unknown attribute
// types are skipped.  It returns false if any attribute is malformed,
// fails its policy's bounds, or a required attribute is missing.
func ParsePolicy(msg *buffer.Buffer, policy []Policy) ([][]byte, bool) {
	attrs := make([][]byte, len(policy))

	required := 0
	for i := range policy {
		if policy[i].Kind >= nAttrKinds {
			panic(fmt.Errorf("netlink: bad policy kind %d",
				policy[i].Kind))
		}
		if policy[i].Kind != NL_A_NO_ATTR && policy[i].Kind != NL_A_FLAG &&
			!policy[i].Optional {
			required++
		}
	}

	if msg.At(0, SizeofHeader+SizeofGenlHeader) == nil {
		log.Print("debug", "netlink: missing headers in policy parse")
		return nil, false
	}
	b := msg.Data()
	for i := SizeofHeader + SizeofGenlHeader; i < len(b); {
		a := (*NlAttr)(unsafe.Pointer(&b[i]))
		if int(a.Len) < SizeofNlAttr {
			log.Print("debug", "netlink: ", i,
				": attr shorter than its header (", a.Len, ")")
			return nil, false
		}
		vlen := int(a.Len) - SizeofNlAttr
		if i+SizeofNlAttr+attrAlignLen(vlen) > len(b) {
			log.Print("debug", "netlink: ", i, ": attr ", a.Kind,
				" aligned len ", attrAlignLen(vlen),
				" > bytes left ", len(b)-i-SizeofNlAttr)
			return nil, false
		}
		v := b[i+SizeofNlAttr : i+int(a.Len)]

		kind := int(a.Kind)
		if kind < len(policy) && policy[kind].Kind != NL_A_NO_ATTR {
			p := &policy[kind]
			min, max := p.MinLen, p.MaxLen
			if min == 0 {
				min = attrLenRange[p.Kind][0]
			}
			if max == 0 {
				max = attrLenRange[p.Kind][1]
			}
			if vlen < min || vlen > max {
				log.Print("debug", "netlink: ", i, ": attr ",
					a.Kind, " length ", vlen,
					" not in range ", min, "...", max)
				return nil, false
			}
			if p.Kind == NL_A_STRING {
				if vlen == 0 || v[vlen-1] != 0 {
					log.Print("debug", "netlink: ", i,
						": attr ", a.Kind,
						" lacks NUL terminator")
					return nil, false
				}
				if bytes.IndexByte(v[:vlen-1], 0) >= 0 {
					log.Print("debug", "netlink: ", i,
						": attr ", a.Kind,
						" has embedded NUL")
					return nil, false
				}
			}
			if attrs[kind] == nil {
				if !p.Optional && p.Kind != NL_A_FLAG {
					required--
				}
				attrs[kind] = v
			}
		}
		i += SizeofNlAttr + attrAlignLen(vlen)
	}
	if required != 0 {
		log.Print("debug", "netlink: ", required,
			" required attrs missing")
		return nil, false
	}
	return attrs, true
}
