// Package profile persists named farmOS connection profiles in a YAML file
// and saves refreshed OAuth tokens back into them.
//
// The file looks like:
//
//	current: default
//	profiles:
//	  default:
//	    hostname: https://farm.example.com
//	    api_style: jsonapi
//	    username: farmer
//	    token:
//	      access_token: ...
//	      refresh_token: ...
//	      expires_at: 1735689600
//
// Profile names are case-insensitive; they are stored in lower case.
package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fivetwenty-io/farmos/internal/constants"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/joeshaw/envdecode"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultName is used when no profile is selected.
const DefaultName = "default"

// Profile holds the connection settings of one farmOS server.
type Profile struct {
	Name         string           `mapstructure:"-"             yaml:"-"`
	Hostname     string           `mapstructure:"hostname"      yaml:"hostname"`
	APIStyle     farmos.APIStyle  `mapstructure:"api_style"     yaml:"api_style,omitempty"`
	Username     string           `mapstructure:"username"      yaml:"username,omitempty"`
	ClientID     string           `mapstructure:"client_id"     yaml:"client_id,omitempty"`
	ClientSecret string           `mapstructure:"client_secret" yaml:"client_secret,omitempty"`
	Scope        string           `mapstructure:"scope"         yaml:"scope,omitempty"`
	GrantType    farmos.GrantType `mapstructure:"grant_type"    yaml:"grant_type,omitempty"`
	Token        *farmos.Token    `mapstructure:"-"             yaml:"-"`
}

// persisted is the on-disk form of a profile; the token keeps expires_at
// as unix seconds.
type persisted struct {
	Profile `mapstructure:",squash" yaml:",inline"`

	Token map[string]any `mapstructure:"token" yaml:"token,omitempty"`
}

type file struct {
	Current  string                `mapstructure:"current"  yaml:"current,omitempty"`
	Profiles map[string]*persisted `mapstructure:"profiles" yaml:"profiles"`
}

// Config returns a client config for the profile. The password is never
// stored and must be set by the caller when a grant needs it.
func (p *Profile) Config() *farmos.Config {
	return &farmos.Config{
		Hostname:     p.Hostname,
		APIStyle:     p.APIStyle,
		Username:     p.Username,
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Scope:        p.Scope,
		GrantType:    p.GrantType,
		Token:        p.Token.Clone(),
	}
}

// Overlay copies every non-empty field of other onto p.
func (p *Profile) Overlay(other *Profile) {
	if other == nil {
		return
	}

	overlay := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}

	overlay(&p.Hostname, other.Hostname)
	overlay(&p.Username, other.Username)
	overlay(&p.ClientID, other.ClientID)
	overlay(&p.ClientSecret, other.ClientSecret)
	overlay(&p.Scope, other.Scope)

	if other.APIStyle != "" {
		p.APIStyle = other.APIStyle
	}

	if other.GrantType != "" {
		p.GrantType = other.GrantType
	}

	if other.Token != nil {
		p.Token = other.Token.Clone()
	}
}

// Store reads and writes the profile file.
type Store struct {
	fs    afero.Fs
	path  string
	mutex sync.Mutex
}

// NewStore creates a store for the file at path on fs.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// DefaultPath returns $HOME/.farmos/config.yml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".farmos", "config.yml"), nil
}

// Path returns the file the store reads.
func (s *Store) Path() string {
	return s.path
}

// Get returns the named profile, or the current one when name is empty.
func (s *Store) Get(name string) (*Profile, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = data.Current
	}

	if name == "" {
		return nil, constants.ErrNoProfileConfigured
	}

	name = strings.ToLower(name)

	entry, ok := data.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrProfileNotFound, name)
	}

	return entry.profile(name)
}

// List returns the profile names in order and the current profile.
func (s *Store) List() ([]string, string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, "", err
	}

	names := make([]string, 0, len(data.Profiles))
	for name := range data.Profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, data.Current, nil
}

// Put creates or replaces a profile. The first profile written becomes current.
func (s *Store) Put(profile *Profile) error {
	return s.update(func(data *file) error {
		name := strings.ToLower(profile.Name)
		if name == "" {
			name = DefaultName
		}

		entry := &persisted{Profile: *profile}
		entry.Name = ""

		if profile.Token != nil {
			entry.Token = profile.Token.ToMap()
		}

		data.Profiles[name] = entry

		if data.Current == "" {
			data.Current = name
		}

		return nil
	})
}

// Use makes name the current profile.
func (s *Store) Use(name string) error {
	return s.update(func(data *file) error {
		name = strings.ToLower(name)
		if _, ok := data.Profiles[name]; !ok {
			return fmt.Errorf("%w: %s", constants.ErrProfileNotFound, name)
		}

		data.Current = name

		return nil
	})
}

// Delete removes a profile.
func (s *Store) Delete(name string) error {
	return s.update(func(data *file) error {
		name = strings.ToLower(name)
		if _, ok := data.Profiles[name]; !ok {
			return fmt.Errorf("%w: %s", constants.ErrProfileNotFound, name)
		}

		delete(data.Profiles, name)

		if data.Current == name {
			data.Current = ""
		}

		return nil
	})
}

// Updater returns a token updater that saves tokens into the named profile,
// creating it with hostname on first use.
func (s *Store) Updater(name, hostname string) farmos.TokenUpdater {
	name = strings.ToLower(name)
	if name == "" {
		name = DefaultName
	}

	return farmos.TokenUpdaterFunc(func(_ context.Context, token *farmos.Token) error {
		return s.update(func(data *file) error {
			entry, ok := data.Profiles[name]
			if !ok {
				entry = &persisted{Profile: Profile{Hostname: hostname}}
				data.Profiles[name] = entry
			}

			entry.Token = token.ToMap()

			if data.Current == "" {
				data.Current = name
			}

			return nil
		})
	})
}

func (s *Store) update(mutate func(data *file) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}

	err = mutate(data)
	if err != nil {
		return err
	}

	return s.save(data)
}

func (s *Store) load() (*file, error) {
	data := &file{Profiles: make(map[string]*persisted)}

	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", s.path, err)
	}

	if !exists {
		return data, nil
	}

	reader := viper.New()
	reader.SetFs(s.fs)
	reader.SetConfigFile(s.path)
	reader.SetConfigType(constants.FormatYAML)

	err = reader.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	err = reader.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}

	if data.Profiles == nil {
		data.Profiles = make(map[string]*persisted)
	}

	return data, nil
}

func (s *Store) save(data *file) error {
	err := s.fs.MkdirAll(filepath.Dir(s.path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	raw, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	err = afero.WriteFile(s.fs, s.path, raw, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}

	return nil
}

func (p *persisted) profile(name string) (*Profile, error) {
	out := p.Profile
	out.Name = name

	if len(p.Token) > 0 {
		token, err := farmos.TokenFromMap(p.Token)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}

		out.Token = token
	}

	return &out, nil
}

// environment maps the FARMOS_* variables.
type environment struct {
	Hostname     string `env:"FARMOS_HOSTNAME"`
	APIStyle     string `env:"FARMOS_API_STYLE"`
	Username     string `env:"FARMOS_OAUTH_USERNAME"`
	Password     string `env:"FARMOS_OAUTH_PASSWORD"`
	ClientID     string `env:"FARMOS_OAUTH_CLIENT_ID"`
	ClientSecret string `env:"FARMOS_OAUTH_CLIENT_SECRET"`
	Scope        string `env:"FARMOS_OAUTH_SCOPE"`
}

// FromEnv reads a profile and password from the environment. Unset
// variables leave the fields empty.
func FromEnv() (*Profile, string, error) {
	var env environment

	err := envdecode.Decode(&env)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, "", fmt.Errorf("failed to read environment: %w", err)
	}

	return &Profile{
		Hostname:     env.Hostname,
		APIStyle:     farmos.APIStyle(env.APIStyle),
		Username:     env.Username,
		ClientID:     env.ClientID,
		ClientSecret: env.ClientSecret,
		Scope:        env.Scope,
	}, env.Password, nil
}
