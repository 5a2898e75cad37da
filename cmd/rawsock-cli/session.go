package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/rawsock-io/rawsock-go/pkg/discovery"
	"github.com/rawsock-io/rawsock-go/pkg/transport"
)

const defaultReadTimeout = 10 * time.Second

// session drives the interactive command loop.
type session struct {
	client *transport.Client
	rl     *readline.Instance
}

func newSession(tlsConf *transport.TLSConfig) (*session, error) {
	client, err := transport.NewClient(transport.ClientConfig{
		TLSConfig: tlsConf,
	})
	if err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rawsock> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := &session{client: client, rl: rl}
	client.Subscribe(s)
	return s, nil
}

// OnConnected implements transport.EventHandler.
func (s *session) OnConnected(ev transport.ConnectedEvent) {
	fmt.Fprintf(s.rl.Stdout(), "Connected to %s (id: %s)\n", ev.RemoteAddr, ev.ID)
}

// OnDisconnected implements transport.EventHandler.
func (s *session) OnDisconnected(ev transport.DisconnectedEvent) {
	fmt.Fprintf(s.rl.Stdout(), "Disconnected from %s (reason: %s)\n", ev.RemoteAddr, ev.Reason)
	s.rl.Refresh()
}

func (s *session) run() {
	s.printHelp()

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "connect", "c":
			s.cmdConnect(args)

		case "send", "s":
			s.cmdSend(args)

		case "write", "w":
			s.cmdWrite(args)

		case "read", "r":
			s.cmdRead(args)

		case "discover", "d":
			s.cmdDiscover(args)

		case "stats":
			s.cmdStats()

		case "close":
			s.cmdClose()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *session) close() {
	s.client.Disconnect()
	_ = s.rl.Close()
}

func (s *session) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
rawsock Commands:
  connect <addr>      - Connect to a server (host:port)
  send <text>         - Send a framed message and print the echo
  write <text>        - Raw write without framing
  read <n> [timeout]  - Read exactly n bytes (timeout in seconds)
  discover [seconds]  - Browse for servers via mDNS
  stats               - Show connection statistics
  close               - Disconnect from the server
  help                - Show this help
  quit                - Exit`)
}

func (s *session) connect(addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Connect(ctx, addr)
}

func (s *session) cmdConnect(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: connect <host:port>")
		return
	}
	if err := s.connect(args[0]); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Connect failed: %v\n", err)
	}
}

// cmdSend sends a length-prefixed frame and reads the echoed frame back.
func (s *session) cmdSend(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: send <text>")
		return
	}

	payload := []byte(strings.Join(args, " "))
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	res := s.client.SendWithTimeout(defaultReadTimeout, frame)
	if res.Status != transport.StatusSuccess {
		fmt.Fprintf(s.rl.Stdout(), "Send failed: %s (%v)\n", res.Status, res.Err)
		return
	}

	header := s.client.ReadWithTimeout(defaultReadTimeout, 4)
	if header.Status != transport.StatusSuccess {
		fmt.Fprintf(s.rl.Stdout(), "Read failed: %s (%v)\n", header.Status, header.Err)
		return
	}
	length := binary.BigEndian.Uint32(header.Data)

	body := s.client.ReadWithTimeout(defaultReadTimeout, int(length))
	if body.Status != transport.StatusSuccess {
		fmt.Fprintf(s.rl.Stdout(), "Read failed: %s (%v)\n", body.Status, body.Err)
		return
	}

	fmt.Fprintf(s.rl.Stdout(), "Echo: %s\n", string(body.Data))
}

func (s *session) cmdWrite(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: write <text>")
		return
	}

	data := []byte(strings.Join(args, " "))
	res := s.client.SendWithTimeout(defaultReadTimeout, data)
	if res.Status != transport.StatusSuccess {
		fmt.Fprintf(s.rl.Stdout(), "Write failed: %s (%v)\n", res.Status, res.Err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Wrote %d bytes\n", res.BytesWritten)
}

func (s *session) cmdRead(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: read <n> [timeout-seconds]")
		return
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count <= 0 {
		fmt.Fprintf(s.rl.Stdout(), "Invalid byte count: %s\n", args[0])
		return
	}

	timeout := defaultReadTimeout
	if len(args) >= 2 {
		secs, err := strconv.Atoi(args[1])
		if err != nil || secs <= 0 {
			fmt.Fprintf(s.rl.Stdout(), "Invalid timeout: %s\n", args[1])
			return
		}
		timeout = time.Duration(secs) * time.Second
	}

	res := s.client.ReadWithTimeout(timeout, count)
	if res.Status != transport.StatusSuccess {
		fmt.Fprintf(s.rl.Stdout(), "Read failed: %s (%d of %d bytes, %v)\n",
			res.Status, res.BytesRead, count, res.Err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Read %d bytes: %q\n", res.BytesRead, string(res.Data))
}

func (s *session) cmdDiscover(args []string) {
	wait := 3 * time.Second
	if len(args) >= 1 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs <= 0 {
			fmt.Fprintf(s.rl.Stdout(), "Invalid duration: %s\n", args[0])
			return
		}
		wait = time.Duration(secs) * time.Second
	}

	fmt.Fprintf(s.rl.Stdout(), "Browsing for %s...\n", wait)

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	browser := discovery.NewBrowser(discovery.BrowserConfig{})
	results, err := browser.Browse(ctx)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Browse failed: %v\n", err)
		return
	}

	found := 0
	for svc := range results {
		found++
		mtls := ""
		if svc.MutualTLS {
			mtls = " [mutual TLS]"
		}
		fmt.Fprintf(s.rl.Stdout(), "  %s at %s%s\n", svc.ID, svc.Addr(), mtls)
	}
	if found == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No servers found")
	}
}

func (s *session) cmdStats() {
	if !s.client.Connected() {
		fmt.Fprintln(s.rl.Stdout(), "Not connected")
		return
	}

	snap := s.client.Statistics().Snapshot()
	fmt.Fprintln(s.rl.Stdout(), "Connection Statistics:")
	fmt.Fprintf(s.rl.Stdout(), "  Bytes sent:     %d\n", snap.BytesSent)
	fmt.Fprintf(s.rl.Stdout(), "  Bytes received: %d\n", snap.BytesReceived)
	fmt.Fprintf(s.rl.Stdout(), "  Uptime:         %s\n", snap.Uptime().Round(time.Second))
}

func (s *session) cmdClose() {
	if !s.client.Connected() {
		fmt.Fprintln(s.rl.Stdout(), "Not connected")
		return
	}
	s.client.Disconnect()
	fmt.Fprintln(s.rl.Stdout(), "Closed")
}
