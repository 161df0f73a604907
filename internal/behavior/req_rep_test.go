// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package behavior

import (
	"context"
	"testing"

	"code.hybscloud.com/zmtp/internal/multipart"
)

func TestReqRep_RoundTrip(t *testing.T) {
	a, b := pipePair(t, "REQ", "REP")
	req := NewReq(a)
	rep := NewRep(b)

	if err := req.Send(context.Background(), multipart.Message{[]byte("question")}); err != nil {
		t.Fatal(err)
	}
	request, err := rep.Recv(multipart.New(multipart.Limits{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(request) != 1 || string(request[0]) != "question" {
		t.Fatalf("rep got %v", request)
	}
	if err := rep.Send(context.Background(), multipart.Message{[]byte("answer")}); err != nil {
		t.Fatal(err)
	}
	reply, err := req.Recv(multipart.New(multipart.Limits{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(reply) != 1 || string(reply[0]) != "answer" {
		t.Fatalf("req got %v", reply)
	}
}

func TestReq_SendBeforeRecvCompletesIsStateViolation(t *testing.T) {
	a, _ := pipePair(t, "REQ", "REP")
	req := NewReq(a)

	if err := req.Send(context.Background(), multipart.Message{[]byte("q1")}); err != nil {
		t.Fatal(err)
	}
	if err := req.Send(context.Background(), multipart.Message{[]byte("q2")}); err != ErrStateViolation {
		t.Fatalf("err = %v, want ErrStateViolation", err)
	}
}

func TestRep_SendBeforeRecvIsStateViolation(t *testing.T) {
	_, b := pipePair(t, "REQ", "REP")
	rep := NewRep(b)

	if err := rep.Send(context.Background(), multipart.Message{[]byte("premature")}); err != ErrStateViolation {
		t.Fatalf("err = %v, want ErrStateViolation", err)
	}
}

func TestRep_RecvWithoutDelimiterIsProtocolViolation(t *testing.T) {
	a, b := pipePair(t, "DEALER", "REP")
	rep := NewRep(b)

	dealer := NewDealer(a)
	if err := dealer.Send(context.Background(), multipart.Message{[]byte("no delimiter here")}); err != nil {
		t.Fatal(err)
	}
	if _, err := rep.Recv(multipart.New(multipart.Limits{})); err != ErrProtocolViolation {
		t.Fatalf("err = %v, want ErrProtocolViolation", err)
	}
}
