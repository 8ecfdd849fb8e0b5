// Command salesagent runs the conversational sales analysis agent, either as
// an interactive terminal session (the default) or as a websocket server
// (-serve). Configuration comes from the environment and an optional .env
// file; see .env.example at the repository root.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/contoso/salesagent"
	"github.com/contoso/salesagent/config"
	"github.com/contoso/salesagent/server"
	"github.com/contoso/salesagent/stream"
)

const (
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

func main() {
	serve := flag.Bool("serve", false, "run the websocket server instead of the interactive prompt")
	noColor := flag.Bool("no-color", false, "disable ANSI colors in terminal output")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := salesagent.New(cfg)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		srv := server.New(app.Runner())
		if err := srv.Start(ctx, ":"+cfg.Server.Port); err != nil {
			log.Fatalf("server: %v", err)
		}
		return
	}

	runREPL(ctx, app, !*noColor)
}

// runREPL reads questions from stdin and streams the agent's answer to
// stdout until the user types "exit" or input ends.
func runREPL(ctx context.Context, app *salesagent.App, color bool) {
	handler := stream.New(os.Stdout, func(o *stream.Options) {
		o.Color = color
	})
	sessionID := uuid.NewString()

	fmt.Println("Ask questions about the sales data. Type 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if color {
			fmt.Print(ansiGreen + "> " + ansiReset)
		} else {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") {
			return
		}

		_, eventsCh, errorsCh, err := app.Run(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		for eventsCh != nil || errorsCh != nil {
			select {
			case ev, ok := <-eventsCh:
				if !ok {
					eventsCh = nil
					continue
				}
				handler.HandleEvent(ev)
			case err, ok := <-errorsCh:
				if !ok {
					errorsCh = nil
					continue
				}
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
