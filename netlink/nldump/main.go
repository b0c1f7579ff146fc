// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

// nldump resolves Generic Netlink family names and dumps netlink
// multicast traffic.
//
//	nldump [-v] [-p PROTOCOL] [-g GROUP] [FAMILY]...
//
// Each FAMILY name is resolved to its Generic Netlink family number.
// With -g, nldump subscribes to the given multicast group of PROTOCOL
// (default NETLINK_GENERIC) and prints the header of every message
// received; -v adds a payload hex dump.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/oflow/netlink"
)

func main() {
	flag, args := flags.New(os.Args[1:], "-v")
	parm, args := parms.New(args, "-p", "-g")

	protocol := netlink.NETLINK_GENERIC
	if s := parm.ByName["-p"]; len(s) > 0 {
		var err error
		protocol, err = strconv.Atoi(s)
		if err != nil {
			log.Print("err", "-p ", s, ": ", err)
			os.Exit(1)
		}
	}

	for _, name := range args {
		var family int
		if err := netlink.LookupGenlFamily(name, &family); err != nil {
			log.Print("err", name, ": ", err)
			os.Exit(1)
		}
		fmt.Println(name, family)
	}

	s := parm.ByName["-g"]
	if len(s) == 0 {
		return
	}
	group, err := strconv.Atoi(s)
	if err != nil {
		log.Print("err", "-g ", s, ": ", err)
		os.Exit(1)
	}

	sock, err := netlink.New(protocol, group, 0, 0)
	if err != nil {
		log.Print("err", err)
		os.Exit(1)
	}
	defer sock.Close()

	for {
		msg, err := sock.Recv(true)
		if err != nil {
			log.Print("err", "recv: ", err)
			os.Exit(1)
		}
		h := netlink.MsgHeader(msg)
		fmt.Printf("type %v len %d seq %d pid %d flags %v\n",
			h.Type, h.Len, h.Sequence, h.Pid, h.Flags)
		if flag.ByName["-v"] {
			fmt.Printf("%x\n", msg.Data())
		}
	}
}
