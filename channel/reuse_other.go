// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build !unix

package channel

import "syscall"

func reuseAddr(network, address string, rc syscall.RawConn) error { return nil }
