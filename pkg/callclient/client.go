package callclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobcontroller/internal/attr"
)

// CallsPath is the URL prefix every remote call is posted under.
const CallsPath = "/v1/calls/"

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 4 << 20

// CallError is returned when the controller answers a call with a negative result.
type CallError struct {
	Call       string
	StatusCode int
	Result     int
	Message    string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: result %d (HTTP %d): %s", e.Call, e.Result, e.StatusCode, e.Message)
}

// Client calls a job controller over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New returns a client for the controller at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do posts req to the named call and decodes the answer into out, which must embed
// Response. A negative result becomes a *CallError.
func (c *Client) do(ctx context.Context, call string, req, out any) error {
	var body io.Reader = http.NoBody
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", call, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+CallsPath+call, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", call, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", call, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", call, err)
	}

	var common Response
	if err := json.Unmarshal(data, &common); err != nil {
		return &CallError{Call: call, StatusCode: resp.StatusCode, Result: -1, Message: strings.TrimSpace(string(data))}
	}
	if common.Result < 0 || resp.StatusCode >= 300 {
		result := common.Result
		if result >= 0 {
			result = -1
		}
		return &CallError{Call: call, StatusCode: resp.StatusCode, Result: result, Message: common.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", call, err)
	}
	return nil
}

// RegisterMachineInfo tells the controller where the agent runs.
func (c *Client) RegisterMachineInfo(ctx context.Context, starterAddr, hostName string) error {
	return c.do(ctx, "registerMachineInfo", MachineInfoRequest{StarterAddr: starterAddr, HostName: hostName}, nil)
}

// RegisterStarterInfo sends the agent's capability record.
func (c *Client) RegisterStarterInfo(ctx context.Context, info *attr.Record) error {
	return c.do(ctx, "registerStarterInfo", RecordRequest{Record: info}, nil)
}

// RegisterJobInfo sends a job record update.
func (c *Client) RegisterJobInfo(ctx context.Context, update *attr.Record) error {
	return c.do(ctx, "registerJobInfo", RecordRequest{Record: update}, nil)
}

// BeginExecution reports that the job has started.
func (c *Client) BeginExecution(ctx context.Context) error {
	return c.do(ctx, "beginExecution", nil, nil)
}

// GetJobInfo fetches the job record.
func (c *Client) GetJobInfo(ctx context.Context) (*attr.Record, error) {
	return c.record(ctx, "getJobInfo")
}

// GetUserInfo fetches the uid and gid the job runs as.
func (c *Client) GetUserInfo(ctx context.Context) (*attr.Record, error) {
	return c.record(ctx, "getUserInfo")
}

// GetJobAd fetches the job record without controller attributes.
func (c *Client) GetJobAd(ctx context.Context) (*attr.Record, error) {
	return c.record(ctx, "getJobAd")
}

func (c *Client) record(ctx context.Context, call string) (*attr.Record, error) {
	var resp RecordResponse
	if err := c.do(ctx, call, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Record == nil {
		return attr.New(), nil
	}
	return resp.Record, nil
}

// JobExit reports the end of the execution attempt.
func (c *Client) JobExit(ctx context.Context, status, reason int, update *attr.Record) error {
	return c.do(ctx, "jobExit", JobExitRequest{Status: status, Reason: reason, Update: update}, nil)
}

// JobTermination reports how the job process ended.
func (c *Client) JobTermination(ctx context.Context, update *attr.Record) error {
	return c.do(ctx, "jobTermination", RecordRequest{Record: update}, nil)
}

// RegisterMasterInfo sends the parallel job leader's address.
func (c *Client) RegisterMasterInfo(ctx context.Context, info *attr.Record) error {
	return c.do(ctx, "registerMasterInfo", RecordRequest{Record: info}, nil)
}

// GetFileInfo resolves a logical file name to an access URL.
func (c *Client) GetFileInfo(ctx context.Context, logicalName string) (string, error) {
	var resp FileInfoResponse
	if err := c.do(ctx, "getFileInfo", FileInfoRequest{LogicalName: logicalName}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// GetBufferInfo fetches the job's default buffer configuration.
func (c *Client) GetBufferInfo(ctx context.Context) (BufferInfo, error) {
	var resp BufferInfoResponse
	if err := c.do(ctx, "getBufferInfo", nil, &resp); err != nil {
		return BufferInfo{}, err
	}
	return resp.BufferInfo, nil
}

// LogEvent writes an event to the job event log.
func (c *Client) LogEvent(ctx context.Context, event *attr.Record) error {
	return c.do(ctx, "logEvent", RecordRequest{Record: event}, nil)
}

// GetJobAttr fetches one job attribute as expression text.
func (c *Client) GetJobAttr(ctx context.Context, name string) (string, error) {
	var resp JobAttrResponse
	if err := c.do(ctx, "getJobAttr", JobAttrRequest{Name: name}, &resp); err != nil {
		return "", err
	}
	return resp.Expr, nil
}

// SetJobAttr assigns an expression to a job attribute.
func (c *Client) SetJobAttr(ctx context.Context, name, expr string, log bool) error {
	return c.do(ctx, "setJobAttr", JobAttrRequest{Name: name, Expr: expr, Log: log}, nil)
}

// ConstrainRequirements narrows the job's requirements.
func (c *Client) ConstrainRequirements(ctx context.Context, expr string) error {
	return c.do(ctx, "constrainRequirements", ConstrainRequest{Expr: expr}, nil)
}

// GetSecSessionInfo negotiates the reconnect and file-transfer sessions.
func (c *Client) GetSecSessionInfo(ctx context.Context, reconnectHint, fileTransferHint string) (reconnect, fileTransfer Session, err error) {
	var resp SecSessionResponse
	req := SecSessionRequest{ReconnectHint: reconnectHint, FileTransferHint: fileTransferHint}
	if err := c.do(ctx, "getSecSessionInfo", req, &resp); err != nil {
		return Session{}, Session{}, err
	}
	return resp.Reconnect, resp.FileTransfer, nil
}

// NotifyEvent sends a notification. It fails only on transport errors.
func (c *Client) NotifyEvent(ctx context.Context, notification *attr.Record) error {
	return c.do(ctx, "notifyEvent", RecordRequest{Record: notification}, nil)
}
