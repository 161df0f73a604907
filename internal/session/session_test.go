// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"testing"

	"code.hybscloud.com/zmtp/internal/mechanism"
)

func TestBuild_Null(t *testing.T) {
	greeting, m, err := Build(Config{
		LocalSocketType: "DEALER",
		MechanismKind:   mechanism.NULL,
	})
	if err != nil {
		t.Fatal(err)
	}
	if greeting.Mechanism != "NULL" {
		t.Fatalf("greeting.Mechanism = %q", greeting.Mechanism)
	}
	if m.Kind() != mechanism.NULL {
		t.Fatalf("m.Kind() = %v", m.Kind())
	}
}

func TestBuild_PlainPicksRoleByAsServer(t *testing.T) {
	_, client, err := Build(Config{LocalSocketType: "REQ", MechanismKind: mechanism.PLAIN, AsServer: false})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := client.(*mechanism.PlainClient); !ok {
		t.Fatalf("got %T, want *mechanism.PlainClient", client)
	}

	_, server, err := Build(Config{LocalSocketType: "REP", MechanismKind: mechanism.PLAIN, AsServer: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := server.(*mechanism.PlainServer); !ok {
		t.Fatalf("got %T, want *mechanism.PlainServer", server)
	}
}

func TestBuild_CurveRequiresKeys(t *testing.T) {
	if _, _, err := Build(Config{MechanismKind: mechanism.CURVE, AsServer: true}); err != ErrMissingCurveKeys {
		t.Fatalf("err = %v, want ErrMissingCurveKeys", err)
	}
	if _, _, err := Build(Config{MechanismKind: mechanism.CURVE, AsServer: false}); err != ErrMissingCurveKeys {
		t.Fatalf("err = %v, want ErrMissingCurveKeys", err)
	}
}

func TestBuild_UnknownMechanism(t *testing.T) {
	if _, _, err := Build(Config{MechanismKind: mechanism.Kind(99)}); err != ErrUnknownMechanism {
		t.Fatalf("err = %v, want ErrUnknownMechanism", err)
	}
}
