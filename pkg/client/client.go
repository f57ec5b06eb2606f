package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/iris/pkg/store"
	"github.com/charlie0129/iris/pkg/types"
)

// requestTimeout bounds a whole request. Lookups only touch the local store.
const requestTimeout = 10 * time.Second

// Client talks to the iris daemon over its unix socket.
type Client struct {
	base       string
	socketPath string
	httpClient *http.Client
}

// NewClient returns a client dialing socketPath.
func NewClient(socketPath string) *Client {
	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "unix", socketPath)
		switch {
		case err == nil:
			return conn, nil
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ECONNREFUSED):
			return nil, ErrDaemonNotRunning
		case errors.Is(err, fs.ErrPermission):
			return nil, ErrPermissionDenied
		}
		logrus.WithError(err).WithField("socket", socketPath).Debug("failed to dial daemon")
		return nil, err
	}

	return &Client{
		base:       "http://unix",
		socketPath: socketPath,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: &http.Transport{DialContext: dial},
		},
	}
}

// NewClientWithHTTP sends requests to base through hc, for a daemon served
// over TCP such as a test server.
func NewClientWithHTTP(hc *http.Client, base string) *Client {
	return &Client{base: strings.TrimSuffix(base, "/"), httpClient: hc}
}

// Send issues one request and returns the response body. A failed request
// is mapped back onto the store error the daemon reported.
func (c *Client) Send(method string, path string, data string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"socket": c.socketPath,
	}).Debug("sending request to daemon")

	var body io.Reader
	if data != "" {
		body = bytes.NewBufferString(data)
	}
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		for _, sentinel := range []error{ErrDaemonNotRunning, ErrPermissionDenied} {
			if errors.Is(err, sentinel) {
				return "", sentinel
			}
		}
		return "", fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return string(b), nil
	}

	msg := unquote(string(b))
	switch resp.Header.Get(types.ErrorKindHeader) {
	case types.ErrorKindNoCalibration:
		return "", fmt.Errorf("%w: %s", store.ErrNoCalibration, msg)
	case types.ErrorKindNotFound:
		return "", fmt.Errorf("%w: %s", store.ErrNotFound, msg)
	case types.ErrorKindReadOnly:
		return "", fmt.Errorf("%w: %s", store.ErrReadOnly, msg)
	case types.ErrorKindExists:
		return "", fmt.Errorf("%w: %s", store.ErrExists, msg)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return "", fmt.Errorf("daemon answered %d: %s", resp.StatusCode, msg)
}

// unquote strips the JSON string quoting the daemon puts around messages.
func unquote(body string) string {
	body = strings.TrimSpace(body)
	if len(body) >= 2 && body[0] == '"' && body[len(body)-1] == '"' {
		return body[1 : len(body)-1]
	}
	return body
}

func (c *Client) Get(path string) (string, error) {
	return c.Send(http.MethodGet, path, "")
}

func (c *Client) Put(path string, data string) (string, error) {
	return c.Send(http.MethodPut, path, data)
}

func (c *Client) Post(path string, data string) (string, error) {
	return c.Send(http.MethodPost, path, data)
}
