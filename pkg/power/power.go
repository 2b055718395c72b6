// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package power controls DUT power outlets on Netio PDUs.
package power

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultOffDelay = 5 * time.Second
)

type Outlet struct {
	ID      int     `json:"ID"`
	Name    string  `json:"Name"`
	State   int     `json:"State"`
	Current float64 `json:"Current"`
	Load    int     `json:"Load"`
}

func (o Outlet) On() bool {
	return o.State == 1
}

type Status struct {
	Outputs []Outlet `json:"Outputs"`
}

type agentResponse struct {
	Agent struct {
		DeviceName string `json:"DeviceName"`
	} `json:"Agent"`
}

type Action string

const (
	ActionOn    Action = "on"
	ActionOff   Action = "off"
	ActionCycle Action = "cycle"
)

var Actions = []Action{
	ActionOn,
	ActionOff,
	ActionCycle,
}

var actionCodes = map[Action]int{
	ActionOff:   0,
	ActionOn:    1,
	ActionCycle: 2,
}

// OutletRef points to a single outlet, parsed from http://<pdu>/outlet/<id>.
type OutletRef struct {
	PDU string
	ID  int
}

func ParseOutlet(raw string) (OutletRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return OutletRef{}, fmt.Errorf("parsing outlet url %q: %w", raw, err)
	}
	if u.Host == "" {
		return OutletRef{}, fmt.Errorf("outlet url %q: no pdu host", raw) //nolint:goerr113
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "outlet" {
		return OutletRef{}, fmt.Errorf("outlet url %q: expected /outlet/<id>", raw) //nolint:goerr113
	}

	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return OutletRef{}, fmt.Errorf("extracting outlet id from %q: %w", raw, err)
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}

	return OutletRef{PDU: scheme + "://" + u.Host, ID: id}, nil
}

type Client struct {
	Username string
	Password string
	OffDelay time.Duration

	http *http.Client
}

func New(username, password string) *Client {
	return &Client{
		Username: username,
		Password: password,
		OffDelay: DefaultOffDelay,
		http:     &http.Client{Timeout: DefaultTimeout},
	}
}

func (c *Client) get(ctx context.Context, pdu string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdu+"/netio.json", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("querying pdu %s: %w", pdu, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Debug("Error response from PDU", "pdu", pdu, "body", string(body))

		return fmt.Errorf("querying pdu %s: unexpected status %s", pdu, resp.Status) //nolint:goerr113
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding pdu %s response: %w", pdu, err)
	}

	return nil
}

func (c *Client) Status(ctx context.Context, pdu string) (*Status, error) {
	status := &Status{}
	if err := c.get(ctx, pdu, status); err != nil {
		return nil, err
	}

	return status, nil
}

func (c *Client) Name(ctx context.Context, pdu string) (string, error) {
	agent := &agentResponse{}
	if err := c.get(ctx, pdu, agent); err != nil {
		return "", err
	}

	return agent.Agent.DeviceName, nil
}

func (c *Client) Control(ctx context.Context, outlet OutletRef, action Action) error {
	code, ok := actionCodes[action]
	if !ok {
		return fmt.Errorf("unknown power action %q", action) //nolint:goerr113
	}

	data := fmt.Sprintf(`{"Outputs":[{"ID":%d,"Action":%d}]}`, outlet.ID, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, outlet.PDU+"/netio.json", strings.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("controlling outlet %d on %s: %w", outlet.ID, outlet.PDU, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("controlling outlet %d on %s: %s", outlet.ID, outlet.PDU, resp.Status) //nolint:goerr113
	}

	return nil
}

func parseAll(outlets map[string]string) (map[string]OutletRef, error) {
	refs := map[string]OutletRef{}
	for psu, raw := range outlets {
		ref, err := ParseOutlet(raw)
		if err != nil {
			return nil, fmt.Errorf("psu %s: %w", psu, err)
		}
		refs[psu] = ref
	}

	return refs, nil
}

// PowerAll applies the action to every outlet (PSU name to outlet URL).
func (c *Client) PowerAll(ctx context.Context, outlets map[string]string, action Action) error {
	refs, err := parseAll(outlets)
	if err != nil {
		return err
	}

	for _, psu := range slices.Sorted(maps.Keys(refs)) {
		slog.Debug("Calling PDU API", "psu", psu, "action", action)
		if err := c.Control(ctx, refs[psu], action); err != nil {
			return fmt.Errorf("power %s %s: %w", action, psu, err)
		}
	}

	return nil
}

// CycleAll switches all outlets off, waits OffDelay and switches them on, so
// a device with several PSUs really loses power.
func (c *Client) CycleAll(ctx context.Context, outlets map[string]string) error {
	if len(outlets) == 1 {
		return c.PowerAll(ctx, outlets, ActionCycle)
	}

	if err := c.PowerAll(ctx, outlets, ActionOff); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting with outlets off: %w", ctx.Err())
	case <-time.After(c.OffDelay):
	}

	return c.PowerAll(ctx, outlets, ActionOn)
}
