// Package config reads the key=value file that drives a full
// dump-and-compare run.
package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pgschema/pgdiff/internal/inspect"
)

const (
	DefaultPort     = 5432
	DefaultFromDump = "dump.from"
	DefaultToDump   = "dump.to"
	DefaultOutput   = "data.out"
)

// Endpoint describes one side of the comparison: where to connect and
// where its dump file goes.
type Endpoint struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Schema   string
	SSL      bool
	Dump     string
}

// Connection returns the introspection settings for the endpoint.
func (e Endpoint) Connection() inspect.Config {
	return inspect.Config{
		Host:     e.Host,
		Port:     e.Port,
		Database: e.Database,
		User:     e.User,
		Password: e.Password,
		SSL:      e.SSL,
		Schema:   e.Schema,
	}
}

// Config is a parsed configuration file
type Config struct {
	From    Endpoint
	To      Endpoint
	Output  string
	UseDrop bool
}

// Error reports a problem with one configuration entry.
type Error struct {
	Line int // 1-based; 0 when the entry could not be located
	Key  string
	Msg  string
}

func (e *Error) Error() string {
	switch {
	case e.Line > 0 && e.Key != "":
		return fmt.Sprintf("config line %d: %s: %s", e.Line, e.Key, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("config line %d: %s", e.Line, e.Msg)
	default:
		return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
	}
}

// Default returns the configuration used when a key is absent.
func Default() *Config {
	return &Config{
		From:   Endpoint{Port: DefaultPort, Dump: DefaultFromDump},
		To:     Endpoint{Port: DefaultPort, Dump: DefaultToDump},
		Output: DefaultOutput,
	}
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(string(data))
}

// Parse parses configuration text. Blank lines and lines starting with #
// are ignored; every other line must be KEY=value with a known key and a
// non-empty value.
func Parse(text string) (*Config, error) {
	lines, err := scanLines(text)
	if err != nil {
		return nil, err
	}

	values, err := godotenv.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cfg := Default()
	for _, raw := range keys {
		key := strings.ToUpper(raw)
		value := strings.TrimSpace(values[raw])
		if value == "" {
			return nil, &Error{Line: lines[key], Key: key, Msg: "empty value"}
		}
		if err := cfg.set(key, value); err != nil {
			return nil, &Error{Line: lines[key], Key: key, Msg: err.Error()}
		}
	}
	return cfg, nil
}

// scanLines checks the shape of every entry and records the line each key
// was last set on.
func scanLines(text string) (map[string]int, error) {
	lines := make(map[string]int)
	sc := bufio.NewScanner(strings.NewReader(text))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, _, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if !ok || key == "" {
			return nil, &Error{Line: n, Msg: fmt.Sprintf("invalid line %q", line)}
		}
		lines[strings.ToUpper(key)] = n
	}
	return lines, sc.Err()
}

func (c *Config) set(key, value string) error {
	switch key {
	case "OUTPUT":
		c.Output = value
		return nil
	case "USE_DROP":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.UseDrop = b
		return nil
	}

	side, field, ok := strings.Cut(key, "_")
	var ep *Endpoint
	switch {
	case ok && side == "FROM":
		ep = &c.From
	case ok && side == "TO":
		ep = &c.To
	default:
		return fmt.Errorf("unknown key")
	}

	switch field {
	case "HOST":
		ep.Host = value
	case "PORT":
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", value)
		}
		ep.Port = port
	case "USER":
		ep.User = value
	case "PASSWORD":
		ep.Password = value
	case "DATABASE":
		ep.Database = value
	case "SCHEME":
		ep.Schema = value
	case "SSL":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		ep.SSL = b
	case "DUMP":
		ep.Dump = value
	default:
		return fmt.Errorf("unknown key")
	}
	return nil
}

// parseBool accepts TRUE or FALSE in any case.
func parseBool(value string) (bool, error) {
	switch strings.ToUpper(value) {
	case "TRUE":
		return true, nil
	case "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("expected TRUE or FALSE, got %q", value)
}
