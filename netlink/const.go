// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

package netlink

import "fmt"

type MsgType uint16
type HeaderFlags uint16

const (
	NLMSG_NOOP MsgType = iota + 1
	NLMSG_ERROR
	NLMSG_DONE
	NLMSG_OVERRUN
)

var msgTypeNames = map[MsgType]string{
	NLMSG_NOOP:    "NLMSG_NOOP",
	NLMSG_ERROR:   "NLMSG_ERROR",
	NLMSG_DONE:    "NLMSG_DONE",
	NLMSG_OVERRUN: "NLMSG_OVERRUN",
}

func (t MsgType) String() string {
	if name, found := msgTypeNames[t]; found {
		return name
	}
	return fmt.Sprintf("%d", uint16(t))
}

const (
	NLM_F_REQUEST HeaderFlags = 1 << iota
	NLM_F_MULTI
	NLM_F_ACK
	NLM_F_ECHO
)

const (
	NLM_F_ROOT HeaderFlags = 0x100 << iota
	NLM_F_MATCH
	NLM_F_ATOMIC
)

const NLM_F_DUMP = NLM_F_ROOT | NLM_F_MATCH

var headerFlagNames = []struct {
	bit  HeaderFlags
	name string
}{
	{NLM_F_REQUEST, "REQUEST"},
	{NLM_F_MULTI, "MULTI"},
	{NLM_F_ACK, "ACK"},
	{NLM_F_ECHO, "ECHO"},
	{NLM_F_ROOT, "ROOT"},
	{NLM_F_MATCH, "MATCH"},
	{NLM_F_ATOMIC, "ATOMIC"},
}

func (f HeaderFlags) String() string {
	s := ""
	for _, x := range headerFlagNames {
		if f&x.bit != 0 {
			if len(s) > 0 {
				s += "|"
			}
			s += x.name
		}
	}
	if len(s) == 0 {
		s = "0"
	}
	return s
}

// Netlink protocol families.
const (
	NETLINK_ROUTE   = 0
	NETLINK_GENERIC = 16
)

// Linux header file confusion causes these to be undefined in syscall.
const (
	SOL_NETLINK            = 270
	NETLINK_ADD_MEMBERSHIP = 1
)

// Generic Netlink control family, used to resolve family names to
// numbers.
const (
	GENL_ID_CTRL = 0x10

	CTRL_CMD_GETFAMILY = 3

	CTRL_ATTR_FAMILY_ID   = 1
	CTRL_ATTR_FAMILY_NAME = 2
	CTRL_ATTR_MAX         = CTRL_ATTR_FAMILY_NAME
)

const NLMSG_ALIGNTO = 4
const NLA_ALIGNTO = 4

// Round the length of a netlink message up to align it properly.
func messageAlignLen(l int) int {
	return (l + NLMSG_ALIGNTO - 1) & ^(NLMSG_ALIGNTO - 1)
}

// Round the length of a netlink attribute up to align it properly.
func attrAlignLen(l int) int {
	return (l + NLA_ALIGNTO - 1) & ^(NLA_ALIGNTO - 1)
}
