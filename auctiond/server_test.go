package main

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/blindauction/api"
)

// startServer serves a fresh engine on a loopback port until the test ends.
func startServer(t *testing.T) (string, *Engine) {
	t.Helper()
	e, _ := newTestEngine(t)
	seq := startSequencer(t, e, nil)

	cfg := testConfig()
	listener, err := Listen(cfg)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	server := NewServer(seq, cfg.MaxWorkers, 5*time.Second, nil)
	go func() { stopped <- server.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		check.NoError(t, <-stopped)
	})
	return listener.Addr().String(), e
}

func roundTrip(t *testing.T, addr string, payload any) api.Response {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	defer conn.Close()

	switch p := payload.(type) {
	case []byte:
		_, err = conn.Write(p)
	default:
		err = json.NewEncoder(conn).Encode(p)
	}
	assert.NoError(t, err)

	var resp api.Response
	assert.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

func TestServer_Ping(t *testing.T) {
	addr, _ := startServer(t)

	resp := roundTrip(t, addr, api.Request{Type: api.TypePing, RequestID: "ping-1"})
	check.True(t, resp.Success)
	check.Equal(t, "pong", resp.Type)
	check.Equal(t, "ping-1", resp.RequestID)
}

func TestServer_AssignsRequestID(t *testing.T) {
	addr, _ := startServer(t)

	resp := roundTrip(t, addr, api.Request{Type: api.TypeStatus})
	check.True(t, resp.Success)
	check.NotEqual(t, "", resp.RequestID)
	check.NotNil(t, resp.Status)
}

func TestServer_DepositAndStatus(t *testing.T) {
	addr, e := startServer(t)

	check.True(t, roundTrip(t, addr, api.Request{Type: api.TypeFund, From: bidderB, Value: "1"}).Success)
	resp := roundTrip(t, addr, api.Request{Type: api.TypeDeposit, From: bidderB, Value: "0.007", Witness: witnessB})
	check.True(t, resp.Success)
	check.Equal(t, "0.993", resp.Balance)

	resp = roundTrip(t, addr, api.Request{Type: api.TypeCheckBid, From: bidderB, Value: "0.007", Witness: witnessB})
	check.True(t, *resp.Valid)

	resp = roundTrip(t, addr, api.Request{Type: api.TypeStatus})
	check.Equal(t, e.auction.Address(), resp.Status.Address)
	check.Equal(t, uint64(13), resp.Status.RevealBlock)
}

func TestServer_MalformedRequest(t *testing.T) {
	addr, _ := startServer(t)

	resp := roundTrip(t, addr, []byte("{not json\n"))
	check.False(t, resp.Success)
	check.Equal(t, "error", resp.Type)
}

func TestServer_UnknownType(t *testing.T) {
	addr, _ := startServer(t)

	resp := roundTrip(t, addr, api.Request{Type: "transfer_everything"})
	check.False(t, resp.Success)
	check.Equal(t, "error", resp.Type)
}
