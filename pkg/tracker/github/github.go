// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package github checks GitHub issues referenced by skip rules.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/google/go-github/v50/github"
	"golang.org/x/oauth2"
)

const StateOpen = "open"

var ErrInvalidRef = errors.New("invalid github issue reference")

var (
	issueURLRe   = regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+)/(?:issues|pull)/(\d+)/?$`)
	issueShortRe = regexp.MustCompile(`^([^/\s]+)/([^#\s]+)#(\d+)$`)
)

type Config struct {
	Token string
	// BaseURL is the API endpoint, empty for github.com
	BaseURL string
}

type Client struct {
	gh *github.Client
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	var httpClient *http.Client
	if cfg.Token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	}

	gh := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base url: %w", err)
		}
		if base.Path == "" || base.Path[len(base.Path)-1] != '/' {
			base.Path += "/"
		}
		gh.BaseURL = base
	}

	return &Client{gh: gh}, nil
}

type Ref struct {
	Owner  string
	Repo   string
	Number int
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// ParseRef accepts issue URLs and the owner/repo#number short form.
func ParseRef(ref string) (Ref, error) {
	m := issueURLRe.FindStringSubmatch(ref)
	if m == nil {
		m = issueShortRe.FindStringSubmatch(ref)
	}
	if m == nil {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}

	n, err := strconv.Atoi(m[3])
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q: %w", ErrInvalidRef, ref, err)
	}

	return Ref{Owner: m[1], Repo: m[2], Number: n}, nil
}

type Issue struct {
	Ref    Ref
	Title  string
	State  string
	Labels []string
}

func (c *Client) Issue(ctx context.Context, ref string) (*Issue, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}

	issue, _, err := c.gh.Issues.Get(ctx, r.Owner, r.Repo, r.Number)
	if err != nil {
		return nil, fmt.Errorf("getting issue %s: %w", r, err)
	}

	res := &Issue{
		Ref:   r,
		Title: issue.GetTitle(),
		State: issue.GetState(),
	}
	for _, label := range issue.Labels {
		res.Labels = append(res.Labels, label.GetName())
	}

	return res, nil
}

// IsActive reports whether the issue is still open.
func (c *Client) IsActive(ctx context.Context, ref string) (bool, error) {
	issue, err := c.Issue(ctx, ref)
	if err != nil {
		return false, err
	}

	return issue.State == StateOpen, nil
}
