package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"casehub/core"
)

// IndexServerTarget describes the keyword search (Solr) server
type IndexServerTarget struct {
	Scheme string
	Host   string
	Port   int
	// Path is the context path of the server, "/solr" by default
	Path string
}

// StatusURL returns the URL of the server's system info endpoint
func (t IndexServerTarget) StatusURL() string {
	scheme := t.Scheme
	if scheme == "" {
		scheme = "http"
	}
	path := t.Path
	if path == "" {
		path = "/solr"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     net.JoinHostPort(t.Host, strconv.Itoa(t.Port)),
		Path:     strings.TrimRight(path, "/") + "/admin/info/system",
		RawQuery: "wt=json",
	}
	return u.String()
}

// StatusError is returned for a non-200 reply from the index server
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("index server returned HTTP %d: %s", e.Code, http.StatusText(e.Code))
}

// StatusCode returns the HTTP status code
func (e *StatusError) StatusCode() int {
	return e.Code
}

// IndexServer probes the keyword search server over HTTP
type IndexServer struct {
	target IndexServerTarget
	client *http.Client
	opts   Options
}

// NewIndexServer creates the probe. A nil client selects http.DefaultClient.
func NewIndexServer(target IndexServerTarget, client *http.Client, opts Options) *IndexServer {
	if client == nil {
		client = http.DefaultClient
	}
	return &IndexServer{target: target, client: client, opts: opts.withDefaults()}
}

// CheckStatus implements monitor.MonitoredService
func (s *IndexServer) CheckStatus(ctx context.Context) core.ServiceStatusReport {
	return check(ctx, core.ServiceKeywordSearch, s.opts, s.ping)
}

type systemInfo struct {
	ResponseHeader struct {
		Status int `json:"status"`
	} `json:"responseHeader"`
}

func (s *IndexServer) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.target.StatusURL(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}

	var info systemInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return fmt.Errorf("invalid index server response: %w", err)
	}
	if info.ResponseHeader.Status != 0 {
		return fmt.Errorf("index server reported status %d", info.ResponseHeader.Status)
	}
	return nil
}
