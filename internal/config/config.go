package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os/exec"
	"strconv"
	"strings"

	"git.sr.ht/~emersion/go-scfg"

	"github.com/nettle-irc/nettle/internal/security"
)

// Config is the startup configuration, loaded once from an scfg file.
// Validation errors are fatal: the engine never starts with a config it
// cannot act on.
type Config struct {
	Addr     string
	Nick     string
	User     string
	Real     string
	Password string
	TLS      bool
	Channels []string

	// SASLMechanism is PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512. Empty means
	// PLAIN when a password is set.
	SASLMechanism string

	Debug bool
}

// Defaults returns the configuration used before any directive is applied.
func Defaults() Config {
	return Config{TLS: true}
}

// Load reads and validates the configuration file at filename.
func Load(filename string) (Config, error) {
	cfg := Defaults()
	if err := unmarshal(filename, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Addr == "" {
		return cfg, errors.New("address is required")
	}
	if cfg.Nick == "" {
		return cfg, errors.New("nickname is required")
	}
	if cfg.User == "" {
		cfg.User = cfg.Nick
	}
	if cfg.Real == "" {
		cfg.Real = cfg.Nick
	}
	if u, err := url.Parse(cfg.Addr); err == nil && u.Scheme != "" {
		switch u.Scheme {
		case "ircs":
			cfg.TLS = true
		case "irc+insecure":
			cfg.TLS = false
		case "irc":
			// Could be TLS or plaintext, keep TLS as is.
		default:
			if u.Host != "" {
				return cfg, fmt.Errorf("invalid IRC addr scheme: %v", cfg.Addr)
			}
		}
		if u.Host != "" {
			cfg.Addr = u.Host
		}
	}
	return cfg, nil
}

// HostPort splits Addr into host and port, defaulting the port from the
// TLS setting when none is given.
func (cfg *Config) HostPort() (string, int) {
	host, portStr, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		host = cfg.Addr
		portStr = ""
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		if cfg.TLS {
			port = 6697
		} else {
			port = 6667
		}
	}
	return host, port
}

func unmarshal(filename string, cfg *Config) error {
	directives, err := scfg.Load(filename)
	if err != nil {
		return fmt.Errorf("error parsing scfg: %s", err)
	}

	for _, d := range directives {
		switch d.Name {
		case "address":
			if err := d.ParseParams(&cfg.Addr); err != nil {
				return err
			}
		case "nickname":
			if err := d.ParseParams(&cfg.Nick); err != nil {
				return err
			}
		case "username":
			if err := d.ParseParams(&cfg.User); err != nil {
				return err
			}
		case "realname":
			if err := d.ParseParams(&cfg.Real); err != nil {
				return err
			}
		case "password":
			// password-cmd and password-keyring take precedence
			if directives.Get("password-cmd") != nil || directives.Get("password-keyring") != nil {
				continue
			}
			if err := d.ParseParams(&cfg.Password); err != nil {
				return err
			}
		case "password-cmd":
			var cmdName string
			if err := d.ParseParams(&cmdName); err != nil {
				return err
			}
			stdout, err := exec.Command(cmdName, d.Params[1:]...).Output()
			if err != nil {
				return fmt.Errorf("error running password command: %s", err)
			}
			cfg.Password, _, _ = strings.Cut(string(stdout), "\n")
		case "password-keyring":
			var account string
			if err := d.ParseParams(&account); err != nil {
				return err
			}
			kc := security.NewKeychain()
			password, err := kc.GetPassword(account)
			if err != nil {
				return fmt.Errorf("error reading keyring entry %q: %s", account, err)
			}
			if password == "" {
				return fmt.Errorf("no keyring entry for %q", account)
			}
			cfg.Password = password
		case "channel":
			cfg.Channels = append(cfg.Channels, d.Params...)
		case "sasl":
			if err := d.ParseParams(&cfg.SASLMechanism); err != nil {
				return err
			}
			switch cfg.SASLMechanism {
			case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
			default:
				return fmt.Errorf("unknown sasl mechanism %q", cfg.SASLMechanism)
			}
		case "tls":
			var tls string
			if err := d.ParseParams(&tls); err != nil {
				return err
			}
			if cfg.TLS, err = strconv.ParseBool(tls); err != nil {
				return err
			}
		case "debug":
			var debug string
			if err := d.ParseParams(&debug); err != nil {
				return err
			}
			if cfg.Debug, err = strconv.ParseBool(debug); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown directive %q", d.Name)
		}
	}
	return nil
}
