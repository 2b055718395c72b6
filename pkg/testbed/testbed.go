// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package testbed loads the YAML description of DUTs, traffic hosts and the
// services the tests talk to.
package testbed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/melbahja/goph"
	"go.githedgehog.com/switchqa/pkg/artifactory"
	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/power"
	"go.githedgehog.com/switchqa/pkg/tracker/github"
	"go.githedgehog.com/switchqa/pkg/tracker/redmine"
	"go.githedgehog.com/switchqa/pkg/util/sshutil"
	"golang.org/x/crypto/ssh"
	kmetav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

const (
	DefaultHostTimeout = 10 * time.Second
)

var (
	ErrNotFound = errors.New("not found")
	ErrNoSecret = errors.New("secret env var is not set")

	validate = validator.New()
)

// Credentials are shared by DUTs and hosts, empty fields are taken from the testbed defaults.
type Credentials struct {
	User        string `json:"user,omitempty"`
	Password    string `json:"password,omitempty"`
	PasswordEnv string `json:"password_env,omitempty"`
	SSHKey      string `json:"ssh_key,omitempty"`
	SSHKeyPath  string `json:"ssh_key_path,omitempty"`
}

type Proxy struct {
	User string `json:"user" validate:"required"`
	Host string `json:"host" validate:"required,hostname|ip"`
	Port uint   `json:"port,omitempty" validate:"lte=65535"`
}

type VXLAN struct {
	VTEP       string `json:"vtep" validate:"required"`
	SourceIP   string `json:"source_ip" validate:"required,ip"`
	NVO        string `json:"nvo,omitempty"`
	VLAN       int    `json:"vlan" validate:"min=1,max=4094"`
	VNI        int    `json:"vni" validate:"min=1,max=16777215"`
	RemoteVTEP string `json:"remote_vtep,omitempty" validate:"omitempty,ip"`
}

type Firmware struct {
	Component string `json:"component" validate:"required"`
	Repo      string `json:"repo" validate:"required"`
	Path      string `json:"path" validate:"required"`
	Name      string `json:"name" validate:"required"`
	// Version is what the component reports once the image is installed, not checked if empty
	Version string `json:"version,omitempty"`
}

type DUT struct {
	Credentials `json:",inline"`

	Name     string            `json:"name" validate:"required"`
	OS       dut.OS            `json:"os" validate:"required,oneof=sonic nvos"`
	Host     string            `json:"host" validate:"required,hostname|ip"`
	Port     uint              `json:"port,omitempty" validate:"lte=65535"`
	Timeout  kmetav1.Duration  `json:"timeout,omitempty"`
	Ports    []string          `json:"ports,omitempty"`
	DPUs     []string          `json:"dpus,omitempty"`
	Outlets  map[string]string `json:"outlets,omitempty" validate:"dive,url"`
	Hosts    []string          `json:"hosts,omitempty"`
	VXLAN    *VXLAN            `json:"vxlan,omitempty" validate:"omitempty"`
	Firmware []Firmware        `json:"firmware,omitempty" validate:"dive"`
}

// Host is a Linux traffic host connected to a DUT port.
type Host struct {
	Credentials `json:",inline"`

	Name    string `json:"name" validate:"required"`
	Host    string `json:"host" validate:"required,hostname|ip"`
	Port    uint   `json:"port,omitempty" validate:"lte=65535"`
	Iface   string `json:"iface" validate:"required"`
	MAC     string `json:"mac,omitempty" validate:"omitempty,mac"`
	DUTPort string `json:"dut_port" validate:"required"`
	VLAN    int    `json:"vlan,omitempty" validate:"omitempty,min=1,max=4094"`
	IP      string `json:"ip,omitempty" validate:"omitempty,cidr"`
	Peer    string `json:"peer,omitempty" validate:"omitempty,ip"`
}

// Player is a remote host the suites are run from with the mars command.
type Player struct {
	Credentials `json:",inline"`

	Name    string `json:"name" validate:"required"`
	Host    string `json:"host" validate:"required,hostname|ip"`
	Port    uint   `json:"port,omitempty" validate:"lte=65535"`
	Binary  string `json:"binary,omitempty"`
	Testbed string `json:"testbed" validate:"required"`
	WorkDir string `json:"work_dir,omitempty"`
}

type PDU struct {
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	PasswordEnv string `json:"password_env,omitempty"`
}

type GitHub struct {
	Token    string `json:"token,omitempty"`
	TokenEnv string `json:"token_env,omitempty"`
	BaseURL  string `json:"base_url,omitempty" validate:"omitempty,url"`
}

type Redmine struct {
	URL            string   `json:"url" validate:"required,url"`
	APIKey         string   `json:"api_key,omitempty"`
	APIKeyEnv      string   `json:"api_key_env,omitempty"`
	ClosedStatuses []string `json:"closed_statuses,omitempty"`
}

type Artifactory struct {
	URL          string `json:"url" validate:"required,url"`
	User         string `json:"user,omitempty"`
	Token        string `json:"token,omitempty"`
	TokenEnv     string `json:"token_env,omitempty"`
	BearerEnv    string `json:"bearer_token_env,omitempty"`
	BearerToken  string `json:"-"`
	DownloadPath string `json:"download_path,omitempty"`
}

type Testbed struct {
	Name        string       `json:"name" validate:"required"`
	Defaults    Credentials  `json:"defaults,omitempty"`
	Proxy       *Proxy       `json:"proxy,omitempty" validate:"omitempty"`
	DUTs        []DUT        `json:"duts" validate:"required,min=1,unique=Name,dive"`
	Hosts       []Host       `json:"hosts,omitempty" validate:"unique=Name,dive"`
	Players     []Player     `json:"players,omitempty" validate:"unique=Name,dive"`
	PDU         *PDU         `json:"pdu,omitempty"`
	GitHub      *GitHub      `json:"github,omitempty"`
	Redmine     *Redmine     `json:"redmine,omitempty" validate:"omitempty"`
	Artifactory *Artifactory `json:"artifactory,omitempty" validate:"omitempty"`

	// Templates, SkipRules and LogRules are paths relative to the testbed file.
	Templates []string `json:"templates,omitempty"`
	SkipRules []string `json:"skip_rules,omitempty"`
	LogRules  string   `json:"log_rules,omitempty"`
}

func Load(path string) (*Testbed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading testbed: %w", err)
	}

	tb, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("testbed %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tb.Templates = relativeTo(dir, tb.Templates...)
	tb.SkipRules = relativeTo(dir, tb.SkipRules...)
	if tb.LogRules != "" {
		tb.LogRules = relativeTo(dir, tb.LogRules)[0]
	}

	return tb, nil
}

func relativeTo(dir string, paths ...string) []string {
	res := make([]string, len(paths))
	for idx, path := range paths {
		if filepath.IsAbs(path) {
			res[idx] = path
		} else {
			res[idx] = filepath.Join(dir, path)
		}
	}

	return res
}

// Parse decodes a testbed, merges the defaults, resolves secrets and validates the result.
func Parse(data []byte) (*Testbed, error) {
	tb := &Testbed{}
	if err := yaml.UnmarshalStrict(data, tb); err != nil {
		return nil, fmt.Errorf("unmarshalling: %w", err)
	}

	if err := tb.init(); err != nil {
		return nil, err
	}

	if err := tb.Validate(); err != nil {
		return nil, err
	}

	return tb, nil
}

func secret(value, env string) (string, error) {
	if value != "" || env == "" {
		return value, nil
	}

	value, ok := os.LookupEnv(env)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", ErrNoSecret, env)
	}

	return value, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home dir: %w", err)
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func (c *Credentials) init(defaults Credentials) error {
	var err error
	// own password env wins over the default password
	if c.SSHKey == "" && c.SSHKeyPath == "" {
		if c.Password, err = secret(c.Password, c.PasswordEnv); err != nil {
			return err
		}
	}

	if err := mergo.Merge(c, defaults); err != nil {
		return fmt.Errorf("merging defaults: %w", err)
	}

	if c.SSHKey == "" && c.SSHKeyPath == "" {
		if c.Password, err = secret(c.Password, c.PasswordEnv); err != nil {
			return err
		}
	}
	if c.SSHKeyPath, err = expandHome(c.SSHKeyPath); err != nil {
		return err
	}

	return nil
}

func (tb *Testbed) init() error {
	for idx := range tb.DUTs {
		d := &tb.DUTs[idx]
		if err := d.Credentials.init(tb.Defaults); err != nil {
			return fmt.Errorf("dut %s: %w", d.Name, err)
		}
	}

	for idx := range tb.Hosts {
		host := &tb.Hosts[idx]
		if err := host.Credentials.init(tb.Defaults); err != nil {
			return fmt.Errorf("host %s: %w", host.Name, err)
		}
	}

	for idx := range tb.Players {
		player := &tb.Players[idx]
		if err := player.Credentials.init(tb.Defaults); err != nil {
			return fmt.Errorf("player %s: %w", player.Name, err)
		}
	}

	var err error
	if tb.PDU != nil {
		if tb.PDU.Password, err = secret(tb.PDU.Password, tb.PDU.PasswordEnv); err != nil {
			return fmt.Errorf("pdu: %w", err)
		}
	}
	if tb.GitHub != nil {
		// anonymous access is fine for public repos
		if tb.GitHub.Token == "" && tb.GitHub.TokenEnv != "" {
			tb.GitHub.Token = os.Getenv(tb.GitHub.TokenEnv)
		}
	}
	if tb.Redmine != nil {
		if tb.Redmine.APIKey, err = secret(tb.Redmine.APIKey, tb.Redmine.APIKeyEnv); err != nil {
			return fmt.Errorf("redmine: %w", err)
		}
	}
	if tb.Artifactory != nil {
		if tb.Artifactory.Token, err = secret(tb.Artifactory.Token, tb.Artifactory.TokenEnv); err != nil {
			return fmt.Errorf("artifactory: %w", err)
		}
		if tb.Artifactory.BearerToken, err = secret("", tb.Artifactory.BearerEnv); err != nil {
			return fmt.Errorf("artifactory: %w", err)
		}
	}

	return nil
}

func (tb *Testbed) Validate() error {
	if err := validate.Struct(tb); err != nil {
		return fmt.Errorf("validating: %w", err)
	}

	hosts := map[string]bool{}
	for _, host := range tb.Hosts {
		hosts[host.Name] = true
	}

	for _, d := range tb.DUTs {
		if d.User == "" {
			return fmt.Errorf("dut %s: no user", d.Name) //nolint:goerr113
		}
		if d.Password == "" && d.SSHKey == "" && d.SSHKeyPath == "" {
			return fmt.Errorf("dut %s: no password or ssh key", d.Name) //nolint:goerr113
		}
		for _, host := range d.Hosts {
			if !hosts[host] {
				return fmt.Errorf("dut %s: unknown host %q", d.Name, host) //nolint:goerr113
			}
		}
		if len(d.Outlets) > 0 && tb.PDU == nil {
			return fmt.Errorf("dut %s: outlets without pdu credentials", d.Name) //nolint:goerr113
		}
		if len(d.Firmware) > 0 && tb.Artifactory == nil {
			return fmt.Errorf("dut %s: firmware without artifactory", d.Name) //nolint:goerr113
		}
	}

	for _, player := range tb.Players {
		if player.User == "" {
			return fmt.Errorf("player %s: no user", player.Name) //nolint:goerr113
		}
		if player.Password == "" && player.SSHKey == "" && player.SSHKeyPath == "" {
			return fmt.Errorf("player %s: no password or ssh key", player.Name) //nolint:goerr113
		}
	}

	return nil
}

func (tb *Testbed) DUT(name string) (*DUT, error) {
	if name == "" && len(tb.DUTs) == 1 {
		return &tb.DUTs[0], nil
	}

	for idx := range tb.DUTs {
		if tb.DUTs[idx].Name == name {
			return &tb.DUTs[idx], nil
		}
	}

	return nil, fmt.Errorf("dut %q: %w", name, ErrNotFound)
}

func (tb *Testbed) Host(name string) (*Host, error) {
	for idx := range tb.Hosts {
		if tb.Hosts[idx].Name == name {
			return &tb.Hosts[idx], nil
		}
	}

	return nil, fmt.Errorf("host %q: %w", name, ErrNotFound)
}

func (tb *Testbed) Player(name string) (*Player, error) {
	if name == "" && len(tb.Players) == 1 {
		return &tb.Players[0], nil
	}

	for idx := range tb.Players {
		if tb.Players[idx].Name == name {
			return &tb.Players[idx], nil
		}
	}

	return nil, fmt.Errorf("player %q: %w", name, ErrNotFound)
}

// HostsOf returns the traffic hosts attached to the DUT.
func (tb *Testbed) HostsOf(d *DUT) ([]*Host, error) {
	res := []*Host{}
	for _, name := range d.Hosts {
		host, err := tb.Host(name)
		if err != nil {
			return nil, err
		}
		res = append(res, host)
	}

	return res, nil
}

// SSHConfig returns the ssh config for the DUT, going through the testbed jump host if set.
func (tb *Testbed) SSHConfig(d *DUT) *sshutil.Config {
	cfg := tb.sshConfig(d.Credentials, d.Host, d.Port)
	cfg.SSHTimeout = d.Timeout.Duration

	return cfg
}

func (tb *Testbed) PlayerSSHConfig(p *Player) *sshutil.Config {
	return tb.sshConfig(p.Credentials, p.Host, p.Port)
}

func (tb *Testbed) sshConfig(creds Credentials, host string, port uint) *sshutil.Config {
	cfg := &sshutil.Config{
		Remote: sshutil.Remote{
			User: creds.User,
			Host: host,
			Port: port,
		},
		Password:   creds.Password,
		SSHKey:     creds.SSHKey,
		SSHKeyPath: creds.SSHKeyPath,
	}

	if tb.Proxy != nil {
		cfg.Proxy = &sshutil.Remote{
			User: tb.Proxy.User,
			Host: tb.Proxy.Host,
			Port: tb.Proxy.Port,
		}
	}

	return cfg
}

func (tb *Testbed) Engine(d *DUT) *dut.SSHEngine {
	return dut.NewSSHEngine(d.Name, tb.SSHConfig(d))
}

func (c *Credentials) auth() (goph.Auth, error) {
	switch {
	case c.SSHKey != "":
		auth, err := goph.RawKey(c.SSHKey, "")
		if err != nil {
			return nil, fmt.Errorf("parsing ssh key: %w", err)
		}

		return auth, nil
	case c.SSHKeyPath != "":
		auth, err := goph.Key(c.SSHKeyPath, "")
		if err != nil {
			return nil, fmt.Errorf("loading ssh key: %w", err)
		}

		return auth, nil
	case c.Password != "":
		return goph.Password(c.Password), nil
	}

	return nil, fmt.Errorf("no password or ssh key") //nolint:goerr113
}

// Connect opens an ssh connection to the traffic host.
func (h *Host) Connect(_ context.Context) (*dut.HostEngine, error) {
	auth, err := h.auth()
	if err != nil {
		return nil, fmt.Errorf("host %s: %w", h.Name, err)
	}

	port := h.Port
	if port == 0 {
		port = sshutil.DefaultPort
	}

	client, err := goph.NewConn(&goph.Config{
		User:     h.User,
		Addr:     h.Host,
		Port:     port,
		Auth:     auth,
		Timeout:  DefaultHostTimeout,
		Callback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %q: %w", h.Name, err)
	}

	return dut.NewHostEngine(h.Name, client), nil
}

func (tb *Testbed) PowerClient() *power.Client {
	if tb.PDU == nil {
		return nil
	}

	return power.New(tb.PDU.Username, tb.PDU.Password)
}

func (tb *Testbed) GitHubConfig() *github.Config {
	if tb.GitHub == nil {
		return nil
	}

	return &github.Config{Token: tb.GitHub.Token, BaseURL: tb.GitHub.BaseURL}
}

func (tb *Testbed) RedmineConfig() *redmine.Config {
	if tb.Redmine == nil {
		return nil
	}

	return &redmine.Config{
		URL:            tb.Redmine.URL,
		APIKey:         tb.Redmine.APIKey,
		ClosedStatuses: tb.Redmine.ClosedStatuses,
	}
}

func (tb *Testbed) ArtifactoryConfig() *artifactory.Config {
	if tb.Artifactory == nil {
		return nil
	}

	return &artifactory.Config{
		URL:         tb.Artifactory.URL,
		User:        tb.Artifactory.User,
		Token:       tb.Artifactory.Token,
		BearerToken: tb.Artifactory.BearerToken,
	}
}
