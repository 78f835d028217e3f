package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/Tyrowin/termchat/internal/client"
	"github.com/Tyrowin/termchat/internal/logger"
	"github.com/Tyrowin/termchat/internal/protocol"
	"github.com/Tyrowin/termchat/internal/tui"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "chat server address")
	logPath := flag.String("log", "", "write client logs to this file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	menu := flag.Bool("menu", false, "start with the log in / sign up menu")
	passwordStage := flag.Bool("password-stage", false, "ask for a password after the username")
	grace := flag.Duration("grace", tui.DefaultGrace, "how long to keep the screen open after the server shuts down")
	flag.Parse()

	if err := run(*addr, *logPath, *logLevel, *grace, client.Options{Menu: *menu, PasswordStage: *passwordStage}); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}

func run(addr, logPath, logLevel string, grace time.Duration, opts client.Options) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("the chat client needs an interactive terminal")
	}

	// The terminal belongs to the UI, so logs go to a file or nowhere.
	if err := logger.Init(logger.ParseLevel(logLevel), logPath, io.Discard); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Global().Close()

	raw, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("could not connect to %s, try again later: %w", addr, err)
	}
	conn := protocol.NewLineConn(raw, protocol.ClientMaxLineSize)
	defer conn.Close()

	logger.Info("Connected to %s", addr)
	return tui.Run(tui.New(conn, opts, grace))
}
