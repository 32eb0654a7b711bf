// Package nutclient is the south-bound collaborator: a minimal client
// for the power-device daemon's textual line protocol on port 3493.
// Only the two operations the engine needs are exposed — listing
// device names and fetching a device's variables — everything else
// about the wire protocol is this package's private concern.
package nutclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const DefaultAddr = "localhost:3493"

var ErrNotConnected = errors.New("nutclient: not connected")

// Client talks to a single power-device daemon instance.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	// DeviceNames returns the daemon's current device set.
	DeviceNames(ctx context.Context) ([]string, error)

	// Variables returns every variable the daemon reports for name,
	// as raw-name -> list-of-values (NUT variables are single-valued
	// on the wire; the list shape exists to match what the transform
	// and update pipeline expect from the daemon).
	Variables(ctx context.Context, name string) (map[string][]string, error)
}

type tcpClient struct {
	addr    string
	timeout time.Duration
	conn    net.Conn
	rw      *bufio.ReadWriter
}

// New returns a Client that dials addr on Connect. It is not safe for
// concurrent use — the agent serializes all daemon access within one
// poll tick, per the single-threaded cooperative scheduling model.
func New(addr string, timeout time.Duration) Client {
	if addr == "" {
		addr = DefaultAddr
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &tcpClient{addr: addr, timeout: timeout}
}

func (c *tcpClient) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		if errors.Is(err, unix.ECONNREFUSED) {
			return fmt.Errorf("nutclient: daemon refused connection at %s: %w", c.addr, err)
		}
		return fmt.Errorf("nutclient: dial %s: %w", c.addr, err)
	}
	c.conn = conn
	c.rw = bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	return nil
}

func (c *tcpClient) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	_, _ = c.send("LOGOUT")
	err := c.conn.Close()
	c.conn = nil
	c.rw = nil
	return err
}

func (c *tcpClient) IsConnected() bool {
	return c.conn != nil
}

func (c *tcpClient) DeviceNames(ctx context.Context) ([]string, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	lines, err := c.send("LIST UPS")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(lines))
	for _, line := range lines {
		fields := splitQuoted(line)
		if len(fields) >= 2 && fields[0] == "UPS" {
			names = append(names, fields[1])
		}
	}
	return names, nil
}

func (c *tcpClient) Variables(ctx context.Context, name string) (map[string][]string, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	lines, err := c.send("LIST VAR " + name)
	if err != nil {
		return nil, err
	}

	vars := make(map[string][]string)
	for _, line := range lines {
		fields := splitQuoted(line)
		// "VAR <upsname> <varname> <value>"
		if len(fields) >= 4 && fields[0] == "VAR" {
			varName := fields[2]
			value := fields[3]
			vars[varName] = []string{value}
		}
	}
	return vars, nil
}

// send writes a command terminated by a newline and collects every response
// line up to and including the matching "END LIST ..." marker, or a
// single-line reply for commands that don't produce a list.
func (c *tcpClient) send(cmd string) ([]string, error) {
	if _, err := c.rw.WriteString(cmd + "\n"); err != nil {
		return nil, err
	}
	if err := c.rw.Flush(); err != nil {
		return nil, err
	}

	first, err := c.rw.ReadString('\n')
	if err != nil {
		return nil, err
	}
	first = strings.TrimRight(first, "\r\n")

	if !strings.HasPrefix(first, "BEGIN LIST") {
		if strings.HasPrefix(first, "ERR") {
			return nil, fmt.Errorf("nutclient: daemon error: %s", first)
		}
		return []string{first}, nil
	}

	var lines []string
	for {
		line, err := c.rw.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, "END LIST") {
			break
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// splitQuoted tokenizes a NUT protocol line, treating a double-quoted
// span as a single field.
func splitQuoted(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}
