// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package artifactory finds and downloads build artifacts (switch images,
// firmware bundles) with Artifactory Query Language searches.
package artifactory

import (
	"context"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

const (
	DefaultTimeout = 30 * time.Second

	progressThreshold = 10_000_000
)

var (
	ErrNotFound         = errors.New("artifact not found")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

type Config struct {
	URL         string
	User        string
	Token       string
	BearerToken string
}

type Client struct {
	cfg    Config
	search *http.Client
	fetch  *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("artifactory url is required") //nolint:goerr113
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("parsing artifactory url: %w", err)
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	return &Client{
		cfg:    cfg,
		search: &http.Client{Timeout: DefaultTimeout},
		fetch:  &http.Client{},
	}, nil
}

type Item struct {
	Repo       string    `json:"repo"`
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Type       string    `json:"type,omitempty"`
	Size       int64     `json:"size"`
	Created    time.Time `json:"created,omitempty"`
	Modified   time.Time `json:"modified,omitempty"`
	ActualSHA1 string    `json:"actual_sha1,omitempty"`
}

func (i Item) FullPath() string {
	parts := []string{i.Repo}
	if i.Path != "" && i.Path != "." {
		parts = append(parts, i.Path)
	}

	return strings.Join(append(parts, i.Name), "/")
}

// escapedPath is FullPath with every segment escaped for use in a URL.
func (i Item) escapedPath() string {
	return strings.Join(lo.Map(strings.Split(i.FullPath(), "/"), func(segment string, _ int) string {
		return url.PathEscape(segment)
	}), "/")
}

type match struct {
	Match string `json:"$match"`
}

type criteria struct {
	Repo string `json:"repo"`
	Path *match `json:"path,omitempty"`
	Name *match `json:"name,omitempty"`
	Type string `json:"type"`
}

// FindQuery builds an AQL query for files in repo matching the path and name
// wildcards, newest first. Empty path or name match anything.
func FindQuery(repo, path, name string, limit int) (string, error) {
	c := criteria{Repo: repo, Type: "file"}
	if path != "" {
		c.Path = &match{Match: path}
	}
	if name != "" {
		c.Name = &match{Match: name}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshaling criteria: %w", err)
	}

	q := fmt.Sprintf(`items.find(%s).include("repo","path","name","type","size","created","modified","actual_sha1").sort({"$desc":["modified"]})`, data)
	if limit > 0 {
		q += fmt.Sprintf(".limit(%d)", limit)
	}

	return q, nil
}

func (c *Client) auth(req *http.Request) {
	switch {
	case c.cfg.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	case c.cfg.User != "":
		req.SetBasicAuth(c.cfg.User, c.cfg.Token)
	}
}

// Search runs an AQL query.
func (c *Client) Search(ctx context.Context, aql string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/api/search/aql", strings.NewReader(aql))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	c.auth(req)

	resp, err := c.search.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, fmt.Errorf("searching: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body))) //nolint:goerr113
	}

	res := struct {
		Results []Item `json:"results"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding search results: %w", err)
	}

	return res.Results, nil
}

// Latest returns the most recently modified matching file.
func (c *Client) Latest(ctx context.Context, repo, path, name string) (*Item, error) {
	q, err := FindQuery(repo, path, name, 1)
	if err != nil {
		return nil, err
	}

	items, err := c.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s/%s/%s", ErrNotFound, repo, path, name)
	}

	return &items[0], nil
}

// Download fetches the item into dest, a directory or a file path. The data
// is written to a temporary file first and renamed once the checksum matched.
func (c *Client) Download(ctx context.Context, item Item, dest string, progress bool) (string, error) {
	if stat, err := os.Stat(dest); err == nil && stat.IsDir() {
		dest = filepath.Join(dest, item.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/"+item.escapedPath(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.auth(req)

	resp, err := c.fetch.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", item.FullPath(), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrNotFound, item.FullPath())
	default:
		return "", fmt.Errorf("downloading %s: unexpected status %s", item.FullPath(), resp.Status) //nolint:goerr113
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size := item.Size
	if size <= 0 {
		size = resp.ContentLength
	}

	var reader io.Reader = resp.Body
	var p *mpb.Progress
	var bar *mpb.Bar
	if progress && size > progressThreshold {
		p = mpb.NewWithContext(ctx, mpb.WithWidth(60))
		bar = p.AddBar(size,
			mpb.PrependDecorators(
				decor.Name(item.Name, decor.WCSyncSpaceR),
				decor.Counters(decor.SizeB1024(0), "% .2f / % .2f", decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.EwmaSpeed(decor.SizeB1024(0), "% .2f", 30),
				decor.OnComplete(
					decor.EwmaETA(decor.ET_STYLE_GO, 30, decor.WCSyncSpace), "done",
				),
			),
		)

		proxy := bar.ProxyReader(resp.Body)
		defer proxy.Close()
		reader = proxy
	}

	hash := sha1.New() //nolint:gosec
	written, err := io.Copy(io.MultiWriter(tmp, hash), reader)
	if p != nil {
		if err != nil {
			bar.Abort(false)
		} else {
			bar.SetTotal(-1, true)
		}
		p.Wait()
	}
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", item.FullPath(), err)
	}

	if item.ActualSHA1 != "" {
		if sum := hex.EncodeToString(hash.Sum(nil)); !strings.EqualFold(sum, item.ActualSHA1) {
			return "", fmt.Errorf("%w: %s: got %s, expected %s", ErrChecksumMismatch, item.FullPath(), sum, item.ActualSHA1)
		}
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("moving download into place: %w", err)
	}

	slog.Debug("Downloaded", "artifact", item.FullPath(), "dest", dest, "size", written)

	return dest, nil
}
