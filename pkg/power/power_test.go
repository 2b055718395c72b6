// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package power

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func TestParseOutlet(t *testing.T) {
	for _, test := range []struct {
		raw      string
		expected OutletRef
		err      bool
	}{
		{raw: "http://10.0.0.5/outlet/3", expected: OutletRef{PDU: "http://10.0.0.5", ID: 3}},
		{raw: "https://pdu-1.lab:8443/outlet/12/", expected: OutletRef{PDU: "https://pdu-1.lab:8443", ID: 12}},
		{raw: "http://10.0.0.5/outlet/x", err: true},
		{raw: "http://10.0.0.5/port/3", err: true},
		{raw: "outlet/3", err: true},
	} {
		t.Run(test.raw, func(t *testing.T) {
			ref, err := ParseOutlet(test.raw)
			if test.err {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.Equal(t, test.expected, ref)
		})
	}
}

type fakePDU struct {
	mu      sync.Mutex
	actions []string
}

func (p *fakePDU) server(t *testing.T) *httptest.Server {
	t.Helper()

	r := mux.NewRouter()
	r.HandleFunc("/netio.json", func(w http.ResponseWriter, req *http.Request) {
		user, pass, ok := req.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)

			return
		}

		if req.Method == http.MethodPost {
			body := struct {
				Outputs []struct {
					ID     int `json:"ID"`
					Action int `json:"Action"`
				} `json:"Outputs"`
			}{}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || len(body.Outputs) != 1 {
				http.Error(w, "bad request", http.StatusBadRequest)

				return
			}

			p.mu.Lock()
			p.actions = append(p.actions, fmt.Sprintf("%d=%d", body.Outputs[0].ID, body.Outputs[0].Action))
			p.mu.Unlock()

			return
		}

		fmt.Fprint(w, `{"Agent": {"DeviceName": "rack1-pdu"}, "Outputs": [{"ID": 1, "Name": "leaf-1-psu1", "State": 1, "Current": 410, "Load": 90}, {"ID": 2, "Name": "leaf-1-psu2", "State": 0}]}`)
	}).Methods(http.MethodGet, http.MethodPost)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv
}

func TestStatusAndName(t *testing.T) {
	ctx := context.Background()
	srv := (&fakePDU{}).server(t)
	c := New("admin", "secret")

	status, err := c.Status(ctx, srv.URL)
	require.NoError(t, err)
	require.Len(t, status.Outputs, 2)
	require.True(t, status.Outputs[0].On())
	require.False(t, status.Outputs[1].On())

	name, err := c.Name(ctx, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "rack1-pdu", name)

	_, err = New("admin", "wrong").Status(ctx, srv.URL)
	require.ErrorContains(t, err, "401")
}

func TestPowerAll(t *testing.T) {
	ctx := context.Background()
	pdu := &fakePDU{}
	srv := pdu.server(t)
	c := New("admin", "secret")
	c.OffDelay = time.Millisecond

	outlets := map[string]string{
		"psu1": srv.URL + "/outlet/1",
		"psu2": srv.URL + "/outlet/2",
	}

	require.NoError(t, c.PowerAll(ctx, outlets, ActionOff))
	require.NoError(t, c.CycleAll(ctx, outlets))
	require.NoError(t, c.CycleAll(ctx, map[string]string{"psu1": srv.URL + "/outlet/1"}))

	require.Equal(t, []string{"1=0", "2=0", "1=0", "2=0", "1=1", "2=1", "1=2"}, pdu.actions)

	require.Error(t, c.Control(ctx, OutletRef{PDU: srv.URL, ID: 1}, "explode"))
	require.Error(t, c.PowerAll(ctx, map[string]string{"psu1": "garbage"}, ActionOn))
}
