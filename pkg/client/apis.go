package client

import (
	"encoding/json"
	"net/url"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/iris/pkg/store"
	"github.com/charlie0129/iris/pkg/types"
)

func getJSON[T any](c *Client, path string, what string) (T, error) {
	var v T
	ret, err := c.Get(path)
	if err != nil {
		return v, pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return v, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return v, nil
}

func postJSON[T any](c *Client, path string, body any, what string) (T, error) {
	var v T
	payload, err := json.Marshal(body)
	if err != nil {
		return v, err
	}
	ret, err := c.Post(path, string(payload))
	if err != nil {
		return v, pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return v, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return v, nil
}

func (c *Client) GetVersion() (string, error) {
	return getJSON[string](c, "/version", "version")
}

func (c *Client) ListMonitors() ([]store.Monitor, error) {
	return getJSON[[]store.Monitor](c, "/monitors", "monitors")
}

func (c *Client) GetMonitor(id string) (store.Monitor, error) {
	return getJSON[store.Monitor](c, "/monitors/"+url.PathEscape(id), "monitor "+id)
}

func (c *Client) ListSettings(monitorID string) ([]string, error) {
	return getJSON[[]string](c, "/monitors/"+url.PathEscape(monitorID)+"/settings", "settings")
}

func (c *Client) ListRGB2LMS(monitorID string) ([]string, error) {
	return getJSON[[]string](c, "/monitors/"+url.PathEscape(monitorID)+"/rgb2lms", "transforms")
}

func (c *Client) GetDefaultMonitor() (store.Monitor, error) {
	return getJSON[store.Monitor](c, "/default-monitor", "default monitor")
}

func (c *Client) SetDefaultMonitor(id string) (string, error) {
	payload, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	return c.Put("/default-monitor", string(payload))
}

func (c *Client) MakeDisplay(req types.DisplayRequest) (store.Display, error) {
	return postJSON[store.Display](c, "/displays", req, "display")
}

func (c *Client) LookupRGB2LMS(d store.Display) (store.RGB2LMS, error) {
	return postJSON[store.RGB2LMS](c, "/rgb2lms/lookup", d, "color transform")
}
