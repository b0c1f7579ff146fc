// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

package netlink

import (
	"errors"
	"syscall"

	"github.com/platinasystems/oflow/buffer"
)

var genlFamilyPolicy = [CTRL_ATTR_MAX + 1]Policy{
	CTRL_ATTR_FAMILY_ID: {Kind: NL_A_U16},
}

// LookupGenlFamily translates a Generic Netlink family name to its
// number.  If *number is zero it performs the lookup over a one-shot
// NETLINK_GENERIC socket and caches the result (the family number, or
// the negated errno) in *number; otherwise it returns the cached result
// without I/O.
func LookupGenlFamily(name string, number *int) error {
	if *number == 0 {
		*number = doLookupGenlFamily(name)
	}
	if *number > 0 {
		return nil
	}
	return syscall.Errno(-*number)
}

func doLookupGenlFamily(name string) int {
	s, err := New(NETLINK_GENERIC, 0, 0, 0)
	if err != nil {
		return -int(errnoOf(err))
	}
	defer s.Close()
	return lookupGenlFamily(s, name)
}

func lookupGenlFamily(s *Socket, name string) int {
	request := buffer.New(0)
	PutGenlHeader(request, s, 0, GENL_ID_CTRL, NLM_F_REQUEST,
		CTRL_CMD_GETFAMILY, 1)
	PutAttrString(request, CTRL_ATTR_FAMILY_NAME, name)

	reply, err := s.Transact(request)
	if err != nil {
		return -int(errnoOf(err))
	}
	if reply == nil {
		// A bare ACK carries no family id.
		return -int(syscall.EPROTO)
	}

	attrs, ok := ParsePolicy(reply, genlFamilyPolicy[:])
	if !ok {
		return -int(syscall.EPROTO)
	}
	family := int(AttrUint16(attrs[CTRL_ATTR_FAMILY_ID]))
	if family == 0 {
		return -int(syscall.EPROTO)
	}
	return family
}

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EINVAL
}
