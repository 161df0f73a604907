// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zmtp

import "net"

// InprocPair returns two connected, in-process duplex endpoints with no
// real transport underneath. The socket constructors (NewReq/NewRep/
// NewDealer/...) take no net.Conn and connect only through Dial/Listen on
// an endpoint string, so they cannot use the pair. It is the Go-idiomatic
// equivalent of the
// original engine's channel-backed inproc stream: net.Pipe already gives a
// synchronous, unbuffered io.ReadWriteCloser pair, so no custom frame
// buffering is needed to get the same zero-copy, in-process semantics.
func InprocPair() (a, b net.Conn) {
	return net.Pipe()
}
