// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package redmine checks Redmine issue status over the REST API.
package redmine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderAPIKey   = "X-Redmine-API-Key"
	DefaultTimeout = 30 * time.Second
)

var (
	ErrInvalidRef = errors.New("invalid redmine issue reference")
	ErrNotFound   = errors.New("issue not found")
)

var DefaultClosedStatuses = []string{"Closed", "Rejected"}

var issueRefRe = regexp.MustCompile(`^(?:.*/issues/|#)?(\d+)(?:\.json)?/?$`)

type Config struct {
	URL    string
	APIKey string
	// ClosedStatuses are used when the server doesn't report is_closed
	ClosedStatuses []string
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redmine url is required") //nolint:goerr113
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if len(cfg.ClosedStatuses) == 0 {
		cfg.ClosedStatuses = DefaultClosedStatuses
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

type Status struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsClosed *bool  `json:"is_closed,omitempty"`
}

type Issue struct {
	ID      int    `json:"id"`
	Subject string `json:"subject"`
	Status  Status `json:"status"`
	Project struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"project"`
}

// ParseRef accepts "123", "#123" and issue URLs.
func ParseRef(ref string) (int, error) {
	m := issueRefRe.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}

	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidRef, ref, err)
	}

	return id, nil
}

func (c *Client) Issue(ctx context.Context, id int) (*Issue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/issues/%d.json", c.cfg.URL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set(HeaderAPIKey, c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getting issue %d: %w", id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	default:
		return nil, fmt.Errorf("getting issue %d: unexpected status %s", id, resp.Status) //nolint:goerr113
	}

	body := struct {
		Issue Issue `json:"issue"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding issue %d: %w", id, err)
	}

	return &body.Issue, nil
}

func (c *Client) IsClosed(status Status) bool {
	if status.IsClosed != nil {
		return *status.IsClosed
	}

	return slices.ContainsFunc(c.cfg.ClosedStatuses, func(name string) bool {
		return strings.EqualFold(name, status.Name)
	})
}

// IsActive reports whether the issue is in any status but a closed one.
func (c *Client) IsActive(ctx context.Context, ref string) (bool, error) {
	id, err := ParseRef(ref)
	if err != nil {
		return false, err
	}

	issue, err := c.Issue(ctx, id)
	if err != nil {
		return false, err
	}

	return !c.IsClosed(issue.Status), nil
}
