package mpdconn

import (
	"context"
	"fmt"
	"strings"

	"github.com/fhs/gompd/v2/mpd"

	"aria/internal/batcher"
)

// Submit implements batcher.Submitter. The batch runs on one connection in
// submission order. The client library does not expose per-command responses
// for protocol command lists, so each command is issued individually and its
// error recorded positionally; a command failure never aborts the commands
// after it.
func (c *Client) Submit(ctx context.Context, commands []batcher.Command) ([]batcher.Outcome, error) {
	outcomes := make([]batcher.Outcome, len(commands))
	err := c.withConn(func(conn *mpd.Client) error {
		failed := 0
		for i, command := range commands {
			if err := ctx.Err(); err != nil {
				return err
			}
			if outcomes[i] = (batcher.Outcome{Err: runCommand(conn, command)}); outcomes[i].Err != nil {
				failed++
			}
		}
		// A fully failed batch may mean the connection itself died, not the
		// commands. Ping distinguishes the two and forces a redial if so.
		if failed == len(commands) && failed > 0 {
			if err := conn.Ping(); err != nil {
				return fmt.Errorf("connection lost during batch: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

func runCommand(conn *mpd.Client, command batcher.Command) error {
	name := strings.TrimSpace(command.Name)
	if name == "" {
		return fmt.Errorf("empty command name")
	}
	format := name + strings.Repeat(" %s", len(command.Args))
	args := make([]any, len(command.Args))
	for i, arg := range command.Args {
		args[i] = arg
	}
	if err := conn.Command(format, args...).OK(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
