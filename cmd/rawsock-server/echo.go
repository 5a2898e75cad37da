package main

import (
	"encoding/binary"
	"log"
	"sync"
	"time"

	"github.com/rawsock-io/rawsock-go/pkg/transport"
)

// maxFrameSize caps the length prefix a client can request.
const maxFrameSize = 16 * 1024 * 1024

// frameTimeout bounds how long the server waits for a frame body
// after seeing its header.
const frameTimeout = 30 * time.Second

// echoService echoes length-prefixed frames back to each client.
// Frames are a 4-byte big-endian length followed by that many bytes.
type echoService struct {
	server *transport.Server

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func newEchoService(server *transport.Server) *echoService {
	return &echoService{server: server}
}

func (e *echoService) OnConnected(ev transport.ConnectedEvent) {
	log.Printf("Client connected: %s (%s)", ev.ID, ev.RemoteAddr)

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go e.run(ev.ID)
}

func (e *echoService) OnDisconnected(ev transport.DisconnectedEvent) {
	log.Printf("Client disconnected: %s (reason: %s)", ev.ID, ev.Reason)
}

// run services one client until it disconnects.
func (e *echoService) run(id string) {
	defer e.wg.Done()

	for {
		header := e.server.Read(id, 4)
		if header.Status != transport.StatusSuccess {
			return
		}

		length := binary.BigEndian.Uint32(header.Data)
		if length == 0 || length > maxFrameSize {
			log.Printf("Client %s: invalid frame length %d, disconnecting", id, length)
			e.server.DisconnectClient(id)
			return
		}

		body := e.server.ReadWithTimeout(id, frameTimeout, int(length))
		if body.Status != transport.StatusSuccess {
			if body.Status == transport.StatusTimeout {
				log.Printf("Client %s: frame body timed out, disconnecting", id)
				e.server.DisconnectClient(id)
			}
			return
		}

		frame := make([]byte, 0, 4+len(body.Data))
		frame = append(frame, header.Data...)
		frame = append(frame, body.Data...)

		if res := e.server.Send(id, frame); res.Status != transport.StatusSuccess {
			return
		}
	}
}

// stop prevents new echo loops and waits for running ones to exit.
// Blocking reads unblock when the server disposes the connections.
func (e *echoService) stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	e.wg.Wait()
}
