// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

package netlink

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/platinasystems/oflow/buffer"
)

func testSocket() *Socket { return &Socket{pid: 0x2a} }

func TestAttrRoundTrip(t *testing.T) {
	s := testSocket()
	msg := buffer.New(0)
	PutGenlHeader(msg, s, 0, 0x18, NLM_F_REQUEST, 1, 1)

	nested := buffer.New(0)
	PutHeader(nested, s, 0, NLMSG_NOOP, 0)
	PutAttrUint32(nested, 1, 7)

	PutAttrUint8(msg, 1, 0xab)
	PutAttrUint16(msg, 2, 0xcdef)
	PutAttrUint32(msg, 3, 0xdeadbeef)
	PutAttrUint64(msg, 4, 0x0123456789abcdef)
	PutAttrString(msg, 5, "ovs_datapath")
	PutAttrFlag(msg, 6)
	PutAttrNested(msg, 7, nested)

	policy := []Policy{
		1: {Kind: NL_A_U8},
		2: {Kind: NL_A_U16},
		3: {Kind: NL_A_U32},
		4: {Kind: NL_A_U64},
		5: {Kind: NL_A_STRING},
		6: {Kind: NL_A_FLAG},
		7: {Kind: NL_A_NESTED},
	}
	attrs, ok := ParsePolicy(msg, policy)
	if !ok {
		t.Fatal("parse failed")
	}
	if v := AttrUint8(attrs[1]); v != 0xab {
		t.Errorf("u8 %#x", v)
	}
	if v := AttrUint16(attrs[2]); v != 0xcdef {
		t.Errorf("u16 %#x", v)
	}
	if v := AttrUint32(attrs[3]); v != 0xdeadbeef {
		t.Errorf("u32 %#x", v)
	}
	if v := AttrUint64(attrs[4]); v != 0x0123456789abcdef {
		t.Errorf("u64 %#x", v)
	}
	if v := AttrString(attrs[5]); v != "ovs_datapath" {
		t.Errorf("string %q", v)
	}
	if attrs[6] == nil {
		t.Error("flag attr missing")
	}
	if !bytes.Equal(attrs[7], nested.Data()) {
		t.Errorf("nested %x != %x", attrs[7], nested.Data())
	}
	if got := MsgHeader(nested).Len; got != uint32(nested.Size()) {
		t.Errorf("nested len %d not finalized to %d",
			got, nested.Size())
	}
}

func TestAttrAlignmentAndPadding(t *testing.T) {
	s := testSocket()
	msg := buffer.New(0)
	PutGenlHeader(msg, s, 0, 0x18, NLM_F_REQUEST, 1, 1)
	PutAttrString(msg, 1, "ab")     // 3 byte payload, 1 pad
	PutAttrUint8(msg, 2, 0xff)      // 1 byte payload, 3 pad
	PutAttrString(msg, 3, "abcdef") // 7 byte payload, 1 pad
	PutAttrUint32(msg, 4, 1)        // no pad

	b := msg.Data()
	n := 0
	for i := SizeofHeader + SizeofGenlHeader; i < len(b); n++ {
		if i%4 != 0 {
			t.Fatalf("attr %d at unaligned offset %d", n, i)
		}
		a := (*NlAttr)(unsafe.Pointer(&b[i]))
		end := i + int(a.Len)
		next := i + attrAlignLen(int(a.Len))
		for j := end; j < next; j++ {
			if b[j] != 0 {
				t.Fatalf("attr %d pad byte %d is %#x",
					n, j, b[j])
			}
		}
		i = next
	}
	if n != 4 {
		t.Fatalf("walked %d attrs", n)
	}
}

func putRaw(msg *buffer.Buffer, b []byte) { msg.Put(b) }

func TestParseMalformed(t *testing.T) {
	policy := []Policy{1: {Kind: NL_A_U32}}
	for _, x := range []struct {
		name  string
		attrs []byte
	}{
		{"len below header", []byte{3, 0, 1, 0}},
		{"aligned len past tail", []byte{12, 0, 1, 0, 1, 2, 3, 4}},
		{"u32 too short", []byte{6, 0, 1, 0, 1, 2, 0, 0}},
	} {
		s := testSocket()
		msg := buffer.New(0)
		PutGenlHeader(msg, s, 0, 0x18, NLM_F_REQUEST, 1, 1)
		putRaw(msg, x.attrs)
		if _, ok := ParsePolicy(msg, policy); ok {
			t.Errorf("%s: parse succeeded", x.name)
		}
	}
}

func TestParseStringChecks(t *testing.T) {
	policy := []Policy{1: {Kind: NL_A_STRING}}
	for _, x := range []struct {
		name    string
		payload []byte
		ok      bool
	}{
		{"terminated", []byte("abc\x00"), true},
		{"missing NUL", []byte("abcd"), false},
		{"embedded NUL", []byte("a\x00b\x00"), false},
	} {
		s := testSocket()
		msg := buffer.New(0)
		PutGenlHeader(msg, s, 0, 0x18, NLM_F_REQUEST, 1, 1)
		PutAttr(msg, 1, x.payload)
		if _, ok := ParsePolicy(msg, policy); ok != x.ok {
			t.Errorf("%s: parse ok %v, want %v", x.name, ok, x.ok)
		}
	}
}

func TestParseRequiredAndOptional(t *testing.T) {
	s := testSocket()
	msg := buffer.New(0)
	PutGenlHeader(msg, s, 0, 0x18, NLM_F_REQUEST, 1, 1)
	PutAttrUint32(msg, 1, 1)

	if _, ok := ParsePolicy(msg, []Policy{
		1: {Kind: NL_A_U32},
		2: {Kind: NL_A_U32},
	}); ok {
		t.Error("parse succeeded with required attr missing")
	}
	attrs, ok := ParsePolicy(msg, []Policy{
		1: {Kind: NL_A_U32},
		2: {Kind: NL_A_U32, Optional: true},
	})
	if !ok {
		t.Fatal("parse failed with optional attr missing")
	}
	if attrs[2] != nil {
		t.Error("absent optional attr is non-nil")
	}
}

func TestParseSkipsUnknown(t *testing.T) {
	s := testSocket()
	msg := buffer.New(0)
	PutGenlHeader(msg, s, 0, 0x18, NLM_F_REQUEST, 1, 1)
	PutAttrUint32(msg, 9, 1) // beyond the policy
	PutAttrUint32(msg, 1, 2)

	attrs, ok := ParsePolicy(msg, []Policy{1: {Kind: NL_A_U32}})
	if !ok {
		t.Fatal("parse failed")
	}
	if v := AttrUint32(attrs[1]); v != 2 {
		t.Errorf("u32 %d", v)
	}
}

func TestParseFirstOccurrenceWins(t *testing.T) {
	s := testSocket()
	msg := buffer.New(0)
	PutGenlHeader(msg, s, 0, 0x18, NLM_F_REQUEST, 1, 1)
	PutAttrUint32(msg, 1, 111)
	PutAttrUint32(msg, 1, 222)

	attrs, ok := ParsePolicy(msg, []Policy{1: {Kind: NL_A_U32}})
	if !ok {
		t.Fatal("parse failed")
	}
	if v := AttrUint32(attrs[1]); v != 111 {
		t.Errorf("u32 %d, want first occurrence", v)
	}
}
