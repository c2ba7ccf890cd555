// Package main is an interactive terminal client for a Moonlapse server.
//
// It logs in (optionally registering first) and then relays every line typed
// on stdin as chat while printing chat from other players.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opd-ai/moonlapse/client"
	"github.com/opd-ai/moonlapse/packet"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

func readPassword(in *bufio.Reader) (string, error) {
	fmt.Print("Password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		return string(pw), err
	}

	line, err := in.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

// format renders a packet for the terminal.
func format(p packet.Packet) string {
	switch p := p.(type) {
	case *packet.Chat:
		return fmt.Sprintf("%s: %s", p.Name, p.Message)
	case *packet.Ok:
		return fmt.Sprintf("[server] %s", p.Message)
	case *packet.Deny:
		return fmt.Sprintf("[server] denied: %s", p.Reason)
	default:
		return fmt.Sprintf("[server] %s", p.Variant())
	}
}

func run(addr, username string, register bool) error {
	in := bufio.NewReader(os.Stdin)
	password, err := readPassword(in)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if register {
		if err := c.Register(username, password); err != nil {
			return err
		}
	}
	if err := c.Login(username, password); err != nil {
		return err
	}

	go func() {
		for {
			p, err := c.Receive()
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "run",
					"error":    err.Error(),
				}).Info("Disconnected")
				os.Exit(0)
			}
			fmt.Println(format(p))
		}
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := c.SendChat(username, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func main() {
	addr := flag.String("addr", "localhost:42523", "Server address")
	username := flag.String("user", "", "Username")
	register := flag.Bool("register", false, "Register the account before logging in")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logrus.SetLevel(level)

	if *username == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	if err := run(*addr, *username, *register); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
