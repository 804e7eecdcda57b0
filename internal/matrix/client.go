package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Controller defines the device operations the reconciliation layer needs.
// It is implemented by *Client and can be faked in tests.
type Controller interface {
	FetchStatus(ctx context.Context) (*Status, error)
	SetRoute(ctx context.Context, output, input int) (bool, error)
	Close()
}

// Ensure Client implements Controller at compile time.
var _ Controller = (*Client)(nil)

const (
	// DefaultPorts is the port count of the reference 8x8 device.
	DefaultPorts    = 8
	DefaultUsername = "Admin"
	DefaultPassword = "admin"
	DefaultTimeout  = 10 * time.Second

	endpointPath     = "/cgi-bin/instr"
	defaultUserAgent = "crossbar/0.1"
	maxReplyBytes    = 1 << 20
)

// Options configure a Client.
type Options struct {
	Host     string
	Username string
	Password string
	Inputs   int           // zero uses DefaultPorts
	Outputs  int           // zero uses DefaultPorts
	Timeout  time.Duration // per request; zero uses DefaultTimeout

	// HTTPClient overrides the transport. Its Timeout is left untouched.
	HTTPClient *http.Client
}

// Client talks to the matrix control endpoint and tracks whether the device
// session is believed to be authenticated.
type Client struct {
	endpoint  *url.URL
	http      *http.Client
	userAgent string
	username  string
	password  string
	inputs    int
	outputs   int

	authenticated atomic.Bool
}

// NewClient builds a Client for the given options. The host may be given
// with or without a scheme and trailing slash.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.Host)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		endpoint:  base.ResolveReference(&url.URL{Path: endpointPath}),
		http:      httpClient,
		userAgent: defaultUserAgent,
		username:  opts.Username,
		password:  opts.Password,
		inputs:    portsOrDefault(opts.Inputs),
		outputs:   portsOrDefault(opts.Outputs),
	}
	if c.username == "" {
		c.username = DefaultUsername
	}
	if c.password == "" {
		c.password = DefaultPassword
	}
	return c, nil
}

// Inputs returns the configured input count.
func (c *Client) Inputs() int { return c.inputs }

// Outputs returns the configured output count.
func (c *Client) Outputs() int { return c.outputs }

// Authenticated reports whether the last login attempt succeeded.
func (c *Client) Authenticated() bool { return c.authenticated.Load() }

// Authenticate logs in with the stored credentials. A well-formed negative
// reply yields (false, nil). Any attempt that does not succeed clears the
// session flag.
func (c *Client) Authenticate(ctx context.Context) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("client is nil")
	}
	log.Info().Str("host", c.endpoint.Host).Msg("authenticating with matrix")

	var reply resultReply
	err := c.post(ctx, cmdLogin, loginRequest{Comhead: cmdLogin, User: c.username, Password: c.password}, &reply)
	if err != nil {
		c.authenticated.Store(false)
		return false, err
	}
	if reply.Result == nil {
		c.authenticated.Store(false)
		return false, protocolError(cmdLogin, "reply has no result field")
	}

	ok := *reply.Result == resultOK
	c.authenticated.Store(ok)
	if ok {
		log.Info().Str("host", c.endpoint.Host).Msg("authenticated with matrix")
	} else {
		log.Warn().Str("host", c.endpoint.Host).Int("result", *reply.Result).Msg("matrix rejected login")
	}
	return ok, nil
}

// FetchStatus queries the routing table and port labels. When the session is
// not authenticated a single login attempt is made first; its outcome does
// not stop the status query.
func (c *Client) FetchStatus(ctx context.Context) (*Status, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	c.ensureSession(ctx)

	var reply statusReply
	raw, err := c.postRaw(ctx, cmdVideoStatus, statusRequest{Comhead: cmdVideoStatus, Language: 0})
	if err != nil {
		return nil, err
	}
	if err := decodeReply(cmdVideoStatus, raw, &reply); err != nil {
		return nil, err
	}
	if !hasField(raw, "allsource") {
		return nil, protocolError(cmdVideoStatus, "reply has no allsource field")
	}
	return projectStatus(reply, c.outputs)
}

// SetRoute routes input to output. Out-of-range ports fail with a
// ValidationError before any request is sent. The boolean reports whether the
// device accepted the switch.
func (c *Client) SetRoute(ctx context.Context, output, input int) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("client is nil")
	}
	if err := c.ValidateRoute(output, input); err != nil {
		return false, err
	}
	c.ensureSession(ctx)

	var reply resultReply
	req := switchRequest{Comhead: cmdVideoSwitch, Language: 0, Source: [2]int{output, input}}
	if err := c.post(ctx, cmdVideoSwitch, req, &reply); err != nil {
		return false, err
	}
	if reply.Result == nil {
		return false, protocolError(cmdVideoSwitch, "reply has no result field")
	}

	ok := *reply.Result == resultOK
	if ok {
		log.Info().Int("output", output).Int("input", input).Msg("matrix route set")
	} else {
		log.Warn().Int("output", output).Int("input", input).Int("result", *reply.Result).Msg("matrix rejected route")
	}
	return ok, nil
}

// ValidateRoute checks both ports against the configured sizes.
func (c *Client) ValidateRoute(output, input int) error {
	return ValidateRoute(output, input, c.outputs, c.inputs)
}

// ValidateRoute checks output against [1, outputs] and input against
// [1, inputs].
func ValidateRoute(output, input, outputs, inputs int) error {
	if output < 1 || output > outputs {
		return &ValidationError{Port: "output", Value: output, Max: outputs}
	}
	if input < 1 || input > inputs {
		return &ValidationError{Port: "input", Value: input, Max: inputs}
	}
	return nil
}

// Close releases idle connections held for the device. The client stays
// usable; the next request dials again.
func (c *Client) Close() {
	if c == nil || c.http == nil {
		return
	}
	c.http.CloseIdleConnections()
}

// ensureSession performs the lazy, at-most-once login that precedes every
// substantive command while the session flag is false.
func (c *Client) ensureSession(ctx context.Context) {
	if c.authenticated.Load() {
		return
	}
	if _, err := c.Authenticate(ctx); err != nil {
		log.Warn().Err(err).Msg("matrix login failed, sending command anyway")
	}
}

func (c *Client) post(ctx context.Context, command string, body, dest any) error {
	raw, err := c.postRaw(ctx, command, body)
	if err != nil {
		return err
	}
	return decodeReply(command, raw, dest)
}

func (c *Client) postRaw(ctx context.Context, command string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", command, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	log.Debug().Str("command", command).Str("url", c.endpoint.String()).Msg("matrix request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Command: command, Kind: KindNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, &TransportError{Command: command, Kind: KindNetwork, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		log.Debug().Str("command", command).Int("status", resp.StatusCode).Bytes("body", raw).Msg("matrix http error")
		return nil, &TransportError{Command: command, Kind: KindStatus, StatusCode: resp.StatusCode}
	}
	return raw, nil
}

func decodeReply(command string, raw []byte, dest any) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return &TransportError{Command: command, Kind: KindDecode, Err: fmt.Errorf("decode response %q: %w", truncate(raw, 120), err)}
	}
	return nil
}

// hasField reports whether the top-level JSON object in raw has key.
func hasField(raw []byte, key string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	_, ok := fields[key]
	return ok
}

// projectStatus converts a status reply into a Status holding exactly outputs
// route entries. The device appends a sentinel after the last output; it and
// anything else past the output count is dropped.
func projectStatus(reply statusReply, outputs int) (*Status, error) {
	if len(reply.AllSource) < outputs {
		return nil, protocolError(cmdVideoStatus, "allsource has %d entries, want at least %d", len(reply.AllSource), outputs)
	}
	return &Status{
		Power:       reply.Power,
		Routes:      cloneInts(reply.AllSource[:outputs]),
		InputNames:  nonNil(reply.AllInputName),
		OutputNames: nonNil(reply.AllOutputName),
		PresetNames: nonNil(reply.AllName),
	}, nil
}

// NormalizeHost strips surrounding whitespace, a URL scheme and a trailing
// slash from user-entered host text.
func NormalizeHost(host string) string {
	trimmed := strings.TrimSpace(host)
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
	}
	return strings.TrimSuffix(trimmed, "/")
}

func parseBaseURL(host string) (*url.URL, error) {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return nil, fmt.Errorf("matrix host is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse host %q: %w", host, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse host %q: missing host", host)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func portsOrDefault(n int) int {
	if n <= 0 {
		return DefaultPorts
	}
	return n
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return cloneStrings(in)
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
