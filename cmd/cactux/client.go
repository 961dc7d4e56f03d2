package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cactux/cactux/internal/config"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &apiClient{
		baseURL: serverURL(cfg.Server.Addr),
		token:   cfg.Server.APIToken,
		// Streams may run for the whole request budget.
		httpClient: &http.Client{Timeout: cfg.Server.RequestTimeout},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is cactux running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// statusError turns a 4xx/5xx reply into an error carrying the server's
// {"error": ...} message when there is one.
func statusError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// printStream copies the text parts of a data stream to out. Tool calls are
// reported on stderr and an error part ends the stream with an error.
func printStream(r io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	wrote := false
	for sc.Scan() {
		code, payload, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		switch code {
		case "0":
			var text string
			if err := json.Unmarshal([]byte(payload), &text); err != nil {
				return fmt.Errorf("decoding text part: %w", err)
			}
			io.WriteString(out, text)
			wrote = true
		case "9":
			var call struct {
				ToolName string `json:"toolName"`
			}
			if json.Unmarshal([]byte(payload), &call) == nil {
				printStep("%s", call.ToolName)
			}
		case "3":
			var msg string
			if err := json.Unmarshal([]byte(payload), &msg); err != nil {
				msg = payload
			}
			return errors.New(msg)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	if wrote {
		io.WriteString(out, "\n")
	}
	return nil
}
