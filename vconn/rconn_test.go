// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

package vconn

import (
	"fmt"
	"io"
	"testing"
)

func TestRconnBackoffGrowsAndResets(t *testing.T) {
	l, err := Open("ptcp:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	r := NewRconn(fmt.Sprintf("tcp:127.0.0.1:%d", listenerPort(t, l)))
	defer r.Close()

	d1 := r.Disconnect(io.EOF)
	d2 := r.Disconnect(io.EOF)
	if d2 <= d1 {
		t.Fatalf("backoff %v after %v did not grow", d2, d1)
	}

	if err = r.Connect(); err != nil {
		t.Fatal(err)
	}
	if r.Vconn() == nil {
		t.Fatal("connected rconn has no vconn")
	}
	if err = r.Connect(); err != nil {
		t.Fatal("connect while connected errored")
	}

	if d := r.Disconnect(io.EOF); d != d1 {
		t.Fatalf("backoff %v after reconnect, want reset to %v", d, d1)
	}
	if r.Vconn() != nil {
		t.Fatal("disconnected rconn still has a vconn")
	}
}
