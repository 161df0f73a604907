// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package behavior

import (
	"context"
	"net"
	"testing"
	"time"

	"code.hybscloud.com/zmtp/internal/conn"
	"code.hybscloud.com/zmtp/internal/mechanism"
	"code.hybscloud.com/zmtp/internal/wire"
)

// pipePair returns two Conns joined by a net.Pipe, handshaken over NULL
// with the given socket types, ready for immediate Send/Recv use.
func pipePair(t *testing.T, aType, bType string) (*conn.Conn, *conn.Conn) {
	t.Helper()
	c1, c2 := net.Pipe()
	a := conn.New(c1, nil, nil)
	b := conn.New(c2, nil, nil)
	t.Cleanup(func() { a.Close(); b.Close() })

	aMech, err := mechanism.NewNull(aType, nil)
	if err != nil {
		t.Fatal(err)
	}
	bMech, err := mechanism.NewNull(bType, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	aGreeting := wire.Greeting{Major: 3, Minor: 1, Mechanism: "NULL"}
	bGreeting := wire.Greeting{Major: 3, Minor: 1, Mechanism: "NULL", AsServer: true}

	errs := make(chan error, 2)
	go func() { _, err := a.Handshake(ctx, aGreeting, aMech); errs <- err }()
	go func() { _, err := b.Handshake(ctx, bGreeting, bMech); errs <- err }()
	if err := <-errs; err != nil {
		t.Fatal(err)
	}
	if err := <-errs; err != nil {
		t.Fatal(err)
	}
	return a, b
}
