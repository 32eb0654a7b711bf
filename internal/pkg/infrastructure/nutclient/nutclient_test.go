package nutclient

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

// fakeDaemon runs a minimal NUT-protocol listener on localhost for one
// client connection, driven by a canned line-by-line script.
func fakeDaemon(t *testing.T, script map[string][]string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.TrimRight(line, "\r\n")
			if cmd == "LOGOUT" {
				conn.Write([]byte("OK Goodbye\n"))
				return
			}
			for _, resp := range script[cmd] {
				conn.Write([]byte(resp + "\n"))
			}
		}
	}()

	return ln.Addr().String()
}

func TestDeviceNames(t *testing.T) {
	is := is.New(t)

	addr := fakeDaemon(t, map[string][]string{
		"LIST UPS": {
			`BEGIN LIST UPS`,
			`UPS ups1 "first unit"`,
			`UPS ups2 "second unit"`,
			`END LIST UPS`,
		},
	})

	c := New(addr, time.Second)
	is.NoErr(c.Connect(context.Background()))
	defer c.Disconnect()

	names, err := c.DeviceNames(context.Background())
	is.NoErr(err)
	is.Equal(names, []string{"ups1", "ups2"})
}

func TestVariables(t *testing.T) {
	is := is.New(t)

	addr := fakeDaemon(t, map[string][]string{
		`LIST VAR ups1`: {
			`BEGIN LIST VAR ups1`,
			`VAR ups1 input.voltage "230.0"`,
			`VAR ups1 ups.status "OL"`,
			`END LIST VAR ups1`,
		},
	})

	c := New(addr, time.Second)
	is.NoErr(c.Connect(context.Background()))
	defer c.Disconnect()

	vars, err := c.Variables(context.Background(), "ups1")
	is.NoErr(err)
	is.Equal(vars["input.voltage"], []string{"230.0"})
	is.Equal(vars["ups.status"], []string{"OL"})
}

func TestNotConnected(t *testing.T) {
	is := is.New(t)

	c := New("127.0.0.1:1", time.Second)
	_, err := c.DeviceNames(context.Background())
	is.True(err == ErrNotConnected)
}

func TestConnectRefused(t *testing.T) {
	is := is.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)
	addr := ln.Addr().String()
	ln.Close() // nothing listening now

	c := New(addr, 200*time.Millisecond)
	err = c.Connect(context.Background())
	is.True(err != nil)
}
