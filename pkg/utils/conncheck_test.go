package utils

import (
	"context"
	"net"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestFeedAddr(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"ws://localhost:8080/frames", "localhost:8080"},
		{"ws://capture.local/frames", "capture.local:80"},
		{"wss://capture.local/frames", "capture.local:443"},
		{"nats://bus:4333", "bus:4333"},
		{"nats://bus", "bus:4222"},
		{"http://somewhere", ""},
		{"not a url", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, FeedAddr(tt.url))
		})
	}
}

func TestWaitForTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	defer ln.Close()
	assert.NilError(t, WaitForTCP(context.Background(), ln.Addr().String(), time.Second))
}

func TestWaitForTCP_Timeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	err = WaitForTCP(context.Background(), addr, 300*time.Millisecond)
	assert.ErrorContains(t, err, "could not be reached")
}
