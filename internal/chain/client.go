package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Options locate the chain binary and node.
type Options struct {
	// Binary is the chain executable name or path.
	Binary string

	// Node is the RPC endpoint passed via --node when supported.
	Node string

	// Home is the chain home directory passed via --home.
	Home string
}

// CommandError reports a chain command that exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := e.Stderr
	if msg == "" {
		msg = e.Stdout
	}
	return fmt.Sprintf("command failed (%d): %s: %s", e.ExitCode, strings.Join(e.Args, " "), msg)
}

// output returns everything the command printed.
func (e *CommandError) output() string {
	return e.Stderr + "\n" + e.Stdout
}

// nodeFlagRejections are the messages a binary prints when it does not know
// the --node flag.
var nodeFlagRejections = []string{
	"unknown flag: --node",
	"unknown shorthand flag",
}

type nodeFlagState int

const (
	nodeFlagUnknown nodeFlagState = iota
	nodeFlagSupported
	nodeFlagUnsupported
)

// NodeFlagNegotiator remembers whether the chain binary accepts --node on
// queries.
//
// Thread-safety: safe for concurrent use.
type NodeFlagNegotiator struct {
	mu    sync.Mutex
	state nodeFlagState
}

// UseNode reports whether the next query should pass --node.
func (n *NodeFlagNegotiator) UseNode() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state != nodeFlagUnsupported
}

// Accepted records a query that succeeded with --node.
func (n *NodeFlagNegotiator) Accepted() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = nodeFlagSupported
}

// Rejected inspects a failed query run with --node. If the failure says the
// flag is unknown, it records the flag as unsupported and returns true.
func (n *NodeFlagNegotiator) Rejected(err *CommandError) bool {
	out := err.output()
	for _, marker := range nodeFlagRejections {
		if strings.Contains(out, marker) {
			n.mu.Lock()
			n.state = nodeFlagUnsupported
			n.mu.Unlock()
			return true
		}
	}
	return false
}

// Client runs chain binary queries.
type Client struct {
	runner Runner
	opts   Options
	node   *NodeFlagNegotiator
	logger *slog.Logger
}

// NewClient creates a client. A nil runner uses ExecRunner; a nil logger
// discards.
func NewClient(runner Runner, opts Options, logger *slog.Logger) *Client {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		runner: runner,
		opts:   opts,
		node:   &NodeFlagNegotiator{},
		logger: logger,
	}
}

// Query runs `<binary> query <module> <cmd> <args...>` with JSON output and
// returns stdout. Empty output is returned as "{}".
func (c *Client) Query(ctx context.Context, module, cmd string, args ...string) ([]byte, error) {
	withNode := c.opts.Node != "" && c.node.UseNode()

	out, err := c.run(ctx, c.queryArgs(module, cmd, args, withNode))
	if err == nil {
		if withNode {
			c.node.Accepted()
		}
		return out, nil
	}

	var cmdErr *CommandError
	if !withNode || !errors.As(err, &cmdErr) || !c.node.Rejected(cmdErr) {
		return nil, err
	}

	c.logger.Info("chain binary rejects --node on queries, retrying without it",
		"binary", c.opts.Binary,
		"module", module,
		"command", cmd)
	return c.run(ctx, c.queryArgs(module, cmd, args, false))
}

func (c *Client) queryArgs(module, cmd string, args []string, withNode bool) []string {
	out := make([]string, 0, len(args)+9)
	out = append(out, "query", module, cmd)
	out = append(out, args...)
	if withNode {
		out = append(out, "--node", c.opts.Node)
	}
	if c.opts.Home != "" {
		out = append(out, "--home", c.opts.Home)
	}
	out = append(out, "--output", "json")
	return out
}

func (c *Client) run(ctx context.Context, args []string) ([]byte, error) {
	c.logger.Debug("running chain command", "binary", c.opts.Binary, "args", args)

	res, err := c.runner.Run(ctx, c.opts.Binary, args...)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &CommandError{
			Args:     append([]string{c.opts.Binary}, args...),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return []byte("{}"), nil
	}
	return []byte(res.Stdout), nil
}
