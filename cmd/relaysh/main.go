// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/nathanodle/relaysh/internal/client"
	"github.com/nathanodle/relaysh/internal/session"
	"github.com/nathanodle/relaysh/internal/stats"
	"github.com/nathanodle/relaysh/internal/termio"
	"github.com/nathanodle/relaysh/internal/transport"
	"github.com/nathanodle/relaysh/internal/wire"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "relaysh"
	app.Usage = "telepresence client: multiplex a terminal and remote filesystem/process operations over one connection"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "simple, s", Usage: "filter TERM_OUTPUT through the terminal transliteration filter"},
		cli.BoolFlag{Name: "resume, r", Usage: "set the HELLO resume flag"},
		cli.StringFlag{Name: "log, l", Usage: "redirect log output to this file"},
		cli.StringFlag{Name: "c", Usage: "config from json file, which will override the command from shell"},
		cli.StringFlag{Name: "snmplog", Usage: "log session counters to this CSV file, supports time.Format patterns"},
		cli.IntFlag{Name: "snmpperiod", Value: 0, Usage: "seconds between snmplog rows, 0 to disable"},
	}
	app.ArgsUsage = "<host> <port>"
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.NewExitError("usage: relaysh [options] <host> <port>", 1)
	}
	port, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("invalid port %q", c.Args().Get(1)), 1)
	}

	config := Config{
		Host:       c.Args().Get(0),
		Port:       port,
		Simple:     c.Bool("simple"),
		Resume:     c.Bool("resume"),
		Log:        c.String("log"),
		SnmpLog:    c.String("snmplog"),
		SnmpPeriod: c.Int("snmpperiod"),
	}
	if c.String("c") != "" {
		if err := parseJSONConfig(&config, c.String("c")); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
	}

	if config.Log != "" {
		f, err := os.OpenFile(config.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if config.SnmpLog != "" && config.SnmpPeriod <= 0 {
		color.Yellow("snmplog is set but snmpperiod is %d; stats will never be written", config.SnmpPeriod)
	}

	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "dial").Error(), 1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	var flags byte
	if config.Resume {
		flags |= wire.FlagResume
	}
	if config.Simple {
		flags |= wire.FlagSimple
	}

	tr := transport.New(conn)
	sess, err := session.Handshake(tr, flags, cwd, wire.DefaultWindow)
	if err != nil {
		conn.Close()
		return cli.NewExitError(errors.Wrap(err, "handshake").Error(), 1)
	}

	if config.SnmpLog != "" && config.SnmpPeriod > 0 {
		go stats.Run(config.SnmpLog, config.SnmpPeriod, func() stats.Snapshot {
			snap := sess.Snapshot()
			return stats.Snapshot{
				BytesInFlight: snap.BytesInFlight,
				BytesToAck:    snap.BytesToAck,
				SendWindow:    snap.SendWindow,
				StreamsOpen:   snap.StreamsOpen,
			}
		})
	}

	cl := client.New(sess, termio.NewLocal(), config.Simple)
	if err := cl.Run(context.Background()); err != nil {
		conn.Close()
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
