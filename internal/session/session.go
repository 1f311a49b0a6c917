// Package session holds the long-lived connection state shared by all
// packages of a run: the target wiki site, its credentials and the HTTP
// client used for downloads.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential is a login for one site
type Credential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Credentials maps site IRIs to logins. The file format is
//
//	wiki-dev.open-semantic-lab.org:
//	  username: bot
//	  password: secret
type Credentials map[string]Credential

// LoadCredentials reads a credential file. A missing file yields an empty
// set, since anonymous access is enough for public sites.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return nil, fmt.Errorf("reading credentials %s: %w", path, err)
	}

	creds := Credentials{}
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decoding credentials %s: %w", path, err)
	}
	return creds, nil
}

// Config describes a session
type Config struct {
	SiteIRI         string
	CredentialsFile string
	HTTPTimeout     time.Duration
}

// Session is created once per invocation and handed to every component
// that talks to the network or the site.
type Session struct {
	SiteIRI     string
	Credentials Credentials
	HTTPClient  *http.Client
}

// New loads credentials and builds the shared HTTP client
func New(cfg Config) (*Session, error) {
	creds := Credentials{}
	if cfg.CredentialsFile != "" {
		var err error
		creds, err = LoadCredentials(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
	}

	return &Session{
		SiteIRI:     cfg.SiteIRI,
		Credentials: creds,
		HTTPClient:  &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

// Credential returns the login for the session's site, if any
func (s *Session) Credential() (Credential, bool) {
	c, ok := s.Credentials[s.SiteIRI]
	return c, ok
}
