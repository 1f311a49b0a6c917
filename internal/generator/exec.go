package generator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opensemanticworld/oswgen/internal/session"
)

// Environment variables passed to the generator command
const (
	EnvSite     = "OSW_SITE"
	EnvUsername = "OSW_USERNAME"
	EnvPassword = "OSW_PASSWORD"
)

// ExecGenerator runs an external generator command. The request is written
// to its stdin as one JSON document and the Result is read from its stdout:
// either stdout holds only the result document, or the result document is
// its last line. Anything the command prints to stderr is logged at debug
// level.
type ExecGenerator struct {
	command []string
	session *session.Session
	timeout time.Duration
	env     []string
	logger  *zap.Logger
}

// ExecOption configures an ExecGenerator
type ExecOption func(*ExecGenerator)

// WithTimeout bounds every invocation. Zero means no limit.
func WithTimeout(d time.Duration) ExecOption {
	return func(g *ExecGenerator) {
		g.timeout = d
	}
}

// WithEnv adds environment variables to the command
func WithEnv(env ...string) ExecOption {
	return func(g *ExecGenerator) {
		g.env = append(g.env, env...)
	}
}

// WithExecLogger sets the logger
func WithExecLogger(logger *zap.Logger) ExecOption {
	return func(g *ExecGenerator) {
		g.logger = logger
	}
}

// NewExecGenerator creates a generator running command. sess may be nil for
// anonymous access.
func NewExecGenerator(command []string, sess *session.Session, opts ...ExecOption) (*ExecGenerator, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("generator command is empty")
	}
	g := &ExecGenerator{
		command: command,
		session: sess,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// FetchSchema runs the command once
func (g *ExecGenerator) FetchSchema(ctx context.Context, req Request) (*Result, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding generator request: %w", err)
	}

	cmd := exec.CommandContext(ctx, g.command[0], g.command[1:]...)
	cmd.Env = append(os.Environ(), g.sessionEnv()...)
	cmd.Env = append(cmd.Env, g.env...)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	g.logStderr(stderr.String())
	if runErr != nil {
		if tail := lastLine(stderr.String()); tail != "" {
			return nil, fmt.Errorf("%s: %w: %s", g.command[0], runErr, tail)
		}
		return nil, fmt.Errorf("%s: %w", g.command[0], runErr)
	}

	res, noise, err := decodeResult(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: decoding result: %w", g.command[0], err)
	}
	for _, line := range noise {
		g.logger.Debug("generator output", zap.String("line", line))
	}
	return res, nil
}

// decodeResult reads the Result from the command's stdout. Generators that
// print progress to stdout are tolerated as long as the result document is
// the last line; the lines before it are returned as noise.
func decodeResult(out []byte) (*Result, []string, error) {
	var res Result
	err := json.Unmarshal(out, &res)
	if err == nil {
		return &res, nil, nil
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if len(lines) < 2 || !strings.HasPrefix(last, "{") {
		return nil, nil, err
	}
	if lerr := json.Unmarshal([]byte(last), &res); lerr != nil {
		return nil, nil, lerr
	}

	var noise []string
	for _, l := range lines[:len(lines)-1] {
		if l = strings.TrimSpace(l); l != "" {
			noise = append(noise, l)
		}
	}
	return &res, noise, nil
}

func (g *ExecGenerator) sessionEnv() []string {
	if g.session == nil {
		return nil
	}
	env := []string{EnvSite + "=" + g.session.SiteIRI}
	if cred, ok := g.session.Credential(); ok {
		env = append(env, EnvUsername+"="+cred.Username, EnvPassword+"="+cred.Password)
	}
	return env
}

func (g *ExecGenerator) logStderr(s string) {
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			g.logger.Debug("generator output", zap.String("line", line))
		}
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
