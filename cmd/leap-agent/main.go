// leap-agent forwards a viewer's LEAP stdio stream to a TCP receiver, so a
// long-lived tool can accept connections from viewers it did not launch.
// Run it as the viewer's LEAP script:
//
//	viewer --leap leap-agent
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/outleap/goleap/internal/logging"
	"github.com/outleap/goleap/leap"
	"github.com/outleap/goleap/llsd"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "leap-agent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to TOML config")
	addr := flag.String("addr", "", "receiver address, overrides config")
	flag.Parse()

	cfg := defaultAgentConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadAgentConfig(*configPath)
		if err != nil {
			return err
		}
	}
	if *addr != "" {
		cfg.ReceiverAddress = *addr
	}

	if cfg.LogLevel != "" {
		os.Setenv(logging.EnvLogLevel, cfg.LogLevel)
	}
	// Logging stays on stderr; stdout carries the LEAP stream.
	logging.ConfigureRuntime()

	conn, err := net.DialTimeout("tcp", cfg.ReceiverAddress, cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("dial receiver: %w", err)
	}

	stdio := leap.NewProtocol(os.Stdin, os.Stdout)
	server := leap.NewProtocol(conn, conn)
	defer stdio.Close()
	defer server.Close()

	// The handshake passes through enriched with the viewer's process id
	// and our launch arguments, so the receiver can tell its viewers apart.
	hello, err := stdio.ReadMessage()
	if err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}
	pump, _ := hello["pump"].(string)
	data, ok := hello["data"].(llsd.Map)
	if !ok {
		data = llsd.Map{}
	}
	data["process_id"] = os.Getppid()
	args := make([]any, 0, len(os.Args)-1)
	for _, a := range os.Args[1:] {
		args = append(args, a)
	}
	data["args"] = args
	if err := server.WriteMessage(pump, data); err != nil {
		return fmt.Errorf("forward handshake: %w", err)
	}
	log.Info().Str("receiver", cfg.ReceiverAddress).Msg("leap-agent: relaying")

	done := make(chan error, 2)
	go relay(stdio, server, done)
	go relay(server, stdio, done)
	err = <-done
	stdio.Close()
	server.Close()
	<-done
	return err
}

// relay pumps messages from src to dst until either side goes away.
func relay(src, dst *leap.Protocol, done chan<- error) {
	for {
		msg, err := src.ReadMessage()
		if err != nil {
			done <- nil
			return
		}
		pump, _ := msg["pump"].(string)
		if err := dst.WriteMessage(pump, msg["data"]); err != nil {
			done <- err
			return
		}
	}
}
