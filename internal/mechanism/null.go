// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mechanism

import (
	"context"

	"code.hybscloud.com/zmtp/internal/wire"
)

// Null is the NULL mechanism: no authentication, a single READY exchange
// in each direction.
type Null struct {
	localSocketType string
	localIdentity   []byte

	pending [][]byte
	done    bool

	peerSocketType string
	peerIdentity   []byte
}

// NewNull returns a Null mechanism that immediately queues its own READY
// for sending; the caller drains it via NextOutbound.
func NewNull(localSocketType string, localIdentity []byte) (*Null, error) {
	n := &Null{localSocketType: localSocketType, localIdentity: localIdentity}
	body, err := readyBody(localSocketType, localIdentity)
	if err != nil {
		return nil, err
	}
	n.pending = append(n.pending, body)
	return n, nil
}

func (n *Null) Kind() Kind { return NULL }

func (n *Null) OnInbound(_ context.Context, frame wire.Frame) error {
	if n.done {
		return ErrHandshakeAlreadyDone
	}
	if !frame.Command {
		return ErrExpectedCommand
	}
	cmd, err := wire.UnmarshalCommand(frame.Body)
	if err != nil {
		return err
	}
	switch cmd.Name {
	case wire.CmdReady:
		st, id, err := parseReady(cmd)
		if err != nil {
			return err
		}
		if !Compatible(n.localSocketType, st) {
			return ErrIncompatibleSocket
		}
		n.peerSocketType = st
		n.peerIdentity = id
		n.done = true
		return nil
	case wire.CmdError:
		return ErrPeerError
	default:
		return ErrUnexpectedCommand
	}
}

func (n *Null) NextOutbound() ([]byte, bool) {
	if len(n.pending) == 0 {
		return nil, false
	}
	out := n.pending[0]
	n.pending = n.pending[1:]
	return out, true
}

func (n *Null) IsDone() bool { return n.done }

func (n *Null) PeerIdentity() []byte { return n.peerIdentity }

func (n *Null) PeerSocketType() string { return n.peerSocketType }
