package lib

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/vaughan0/go-ini"
)

// Config is the tenant configuration every component is constructed
// with. It is built once at startup (NewConfig) and injected; there is
// no process-wide singleton to forget to initialize.
type Config struct {
	Domain   string
	ClientID string
	Audience string
}

const DefaultTenant = "default"

// Tenants maps ini section name -> key/value settings.
type Tenants map[string]map[string]string

type configFile interface {
	Parse() (Tenants, error)
}

type fileConfig struct {
	file string
}

// NewConfigFromEnv locates the config file: MFACTL_CONFIG_FILE if set,
// otherwise ~/.config/mfactl/config.
func NewConfigFromEnv() (configFile, error) {
	file := os.Getenv("MFACTL_CONFIG_FILE")
	if file == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		file = filepath.Join(home, ".config", "mfactl", "config")
		if _, err := os.Stat(file); os.IsNotExist(err) {
			file = ""
		}
	}
	return &fileConfig{file: file}, nil
}

func (c *fileConfig) Parse() (Tenants, error) {
	if c.file == "" {
		return nil, nil
	}

	log.Debugf("Parsing config file %s", c.file)
	f, err := ini.LoadFile(c.file)
	if err != nil {
		return nil, fmt.Errorf("Error parsing config file %q: %v", c.file, err)
	}

	tenants := Tenants{}
	for sectionName, section := range f {
		tenants[strings.TrimPrefix(sectionName, "tenant ")] = section
	}

	return tenants, nil
}

// GetValue looks key up in the named tenant section, falling back to the
// default section.
func (t Tenants) GetValue(tenant, key string) (string, error) {
	if value, ok := t[tenant][key]; ok {
		return value, nil
	}
	if value, ok := t[DefaultTenant][key]; ok {
		return value, nil
	}
	return "", fmt.Errorf("Could not find %s in tenant %s or %s", key, tenant, DefaultTenant)
}

// NewConfig builds the Config for one tenant. domain and client_id are
// required; audience defaults to the tenant's account API.
func NewConfig(t Tenants, tenant string) (*Config, error) {
	domain, err := t.GetValue(tenant, "domain")
	if err != nil {
		return nil, err
	}
	clientID, err := t.GetValue(tenant, "client_id")
	if err != nil {
		return nil, err
	}
	audience, err := t.GetValue(tenant, "audience")
	if err != nil {
		audience = fmt.Sprintf("https://%s/me/", domain)
	}

	return &Config{
		Domain:   domain,
		ClientID: clientID,
		Audience: audience,
	}, nil
}
