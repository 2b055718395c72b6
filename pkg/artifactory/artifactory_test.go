// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package artifactory

import (
	"context"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

const image = "sonic image payload"

func sha1Hex(data string) string {
	sum := sha1.Sum([]byte(data)) //nolint:gosec

	return hex.EncodeToString(sum[:])
}

func TestFindQuery(t *testing.T) {
	q, err := FindQuery("sonic-images", "202311/*", "sonic-mellanox*.bin", 1)
	require.NoError(t, err)
	require.Equal(t, `items.find({"repo":"sonic-images","path":{"$match":"202311/*"},"name":{"$match":"sonic-mellanox*.bin"},"type":"file"})`+
		`.include("repo","path","name","type","size","created","modified","actual_sha1").sort({"$desc":["modified"]}).limit(1)`, q)

	q, err = FindQuery(`we"ird`, "", "", 0)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(q, `items.find({"repo":"we\"ird","type":"file"})`))
	require.False(t, strings.Contains(q, ".limit("))
}

func newServer(t *testing.T, results string) *httptest.Server {
	t.Helper()

	r := mux.NewRouter()
	r.HandleFunc("/api/search/aql", func(w http.ResponseWriter, req *http.Request) {
		user, pass, ok := req.BasicAuth()
		if !ok || user != "qa" || pass != "token" {
			http.Error(w, `{"errors": [{"status": 401}]}`, http.StatusUnauthorized)

			return
		}
		if req.Header.Get("Content-Type") != "text/plain" {
			http.Error(w, "bad content type", http.StatusBadRequest)

			return
		}
		body, _ := io.ReadAll(req.Body)
		if !strings.HasPrefix(string(body), "items.find(") {
			http.Error(w, "bad query", http.StatusBadRequest)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, results)
	}).Methods(http.MethodPost)
	r.HandleFunc("/sonic-images/202311/sonic-mellanox.bin", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, image)
	}).Methods(http.MethodGet)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv
}

func TestLatestAndDownload(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, fmt.Sprintf(`{"results": [{"repo": "sonic-images", "path": "202311", "name": "sonic-mellanox.bin", "type": "file", "size": %d, "created": "2024-03-12T10:00:00.000Z", "modified": "2024-03-12T11:00:00.000Z", "actual_sha1": %q}], "range": {"start_pos": 0, "end_pos": 1, "total": 1}}`, len(image), sha1Hex(image)))

	c, err := New(Config{URL: srv.URL + "/", User: "qa", Token: "token"})
	require.NoError(t, err)

	item, err := c.Latest(ctx, "sonic-images", "202311", "sonic-mellanox*.bin")
	require.NoError(t, err)
	require.Equal(t, "sonic-images/202311/sonic-mellanox.bin", item.FullPath())
	require.Equal(t, 2024, item.Modified.Year())

	dir := t.TempDir()
	path, err := c.Download(ctx, *item, dir, true)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sonic-mellanox.bin"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, image, string(data))

	bad := *item
	bad.ActualSHA1 = sha1Hex("something else")
	_, err = c.Download(ctx, bad, filepath.Join(dir, "other.bin"), false)
	require.ErrorIs(t, err, ErrChecksumMismatch)
	_, err = os.Stat(filepath.Join(dir, "other.bin"))
	require.ErrorIs(t, err, os.ErrNotExist)

	missing := *item
	missing.Name = "missing.bin"
	_, err = c.Download(ctx, missing, dir, false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDownloadEscapesPath(t *testing.T) {
	const payload = "bios payload"
	requested := ""

	r := mux.NewRouter()
	r.HandleFunc("/firmware/sn5600/bios 0ACLH004/bios#2 100%.rom", func(w http.ResponseWriter, req *http.Request) {
		requested = req.URL.EscapedPath()
		fmt.Fprint(w, payload)
	}).Methods(http.MethodGet)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL, User: "qa", Token: "token"})
	require.NoError(t, err)

	item := Item{
		Repo:       "firmware",
		Path:       "sn5600/bios 0ACLH004",
		Name:       "bios#2 100%.rom",
		Size:       int64(len(payload)),
		ActualSHA1: sha1Hex(payload),
	}
	require.Equal(t, "firmware/sn5600/bios%200ACLH004/bios%232%20100%25.rom", item.escapedPath())

	dir := t.TempDir()
	path, err := c.Download(context.Background(), item, dir, false)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "bios#2 100%.rom"), path)
	require.Equal(t, "/firmware/sn5600/bios%200ACLH004/bios%232%20100%25.rom", requested)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, string(data))
}

func TestLatestNotFound(t *testing.T) {
	srv := newServer(t, `{"results": []}`)

	c, err := New(Config{URL: srv.URL, User: "qa", Token: "token"})
	require.NoError(t, err)

	_, err = c.Latest(context.Background(), "sonic-images", "202311", "nope*")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSearchUnauthorized(t *testing.T) {
	srv := newServer(t, `{"results": []}`)

	c, err := New(Config{URL: srv.URL, BearerToken: "wrong"})
	require.NoError(t, err)

	_, err = c.Search(context.Background(), `items.find({"repo":"sonic-images"})`)
	require.ErrorContains(t, err, "401")

	_, err = New(Config{})
	require.Error(t, err)
}
