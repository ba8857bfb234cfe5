package eio

import (
	"time"

	"github.com/NYTimes/gziphandler"
)

const (
	// Length-prefixed polling payloads, client-initiated heartbeat.
	ProtocolVersion = 3

	defaultMaxBufferSize        int64 = 1e6 // 1 MB
	defaultPingInterval               = time.Second * 25
	defaultPingTimeout                = time.Second * 60
	defaultUpgradeTimeout             = time.Second * 10
	defaultWriteTimeout               = time.Second * 10
	defaultCompressionThreshold       = gziphandler.DefaultMinSize
)
