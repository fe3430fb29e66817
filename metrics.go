// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package murmur

import "expvar"

// nodeMetrics record node activity counters.
type nodeMetrics struct {
	frameRecv    expvar.Int
	frameSent    expvar.Int
	frameDropped expvar.Int // received and discarded by filtering or dispatch
	frameInvalid expvar.Int // received and not decodable
	callIn       expvar.Int // number of inbound calls received
	callInErr    expvar.Int // number of inbound calls reporting an error
	callOut      expvar.Int // number of outbound calls initiated
	callOutErr   expvar.Int // number of outbound calls reporting an error
	callActive   expvar.Int // inbound
	callPending  expvar.Int // outbound

	emap *expvar.Map
}

func newNodeMetrics() *nodeMetrics {
	nm := &nodeMetrics{emap: new(expvar.Map)}
	nm.emap.Set("frames_received", &nm.frameRecv)
	nm.emap.Set("frames_sent", &nm.frameSent)
	nm.emap.Set("frames_dropped", &nm.frameDropped)
	nm.emap.Set("frames_invalid", &nm.frameInvalid)
	nm.emap.Set("calls_in", &nm.callIn)
	nm.emap.Set("calls_in_failed", &nm.callInErr)
	nm.emap.Set("calls_active", &nm.callActive)
	nm.emap.Set("calls_out", &nm.callOut)
	nm.emap.Set("calls_out_failed", &nm.callOutErr)
	nm.emap.Set("calls_pending", &nm.callPending)
	return nm
}
