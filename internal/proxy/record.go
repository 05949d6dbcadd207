// Package proxy defines the proxy record model and its sanitization rules.
package proxy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is a single MTProto proxy as it travels through the pipeline.
// The fields the pipeline understands are typed; anything else a source
// attaches is preserved in Extra and written back to the archive untouched.
type Record struct {
	IP          string
	Port        int
	Secret      string
	TGLink      string
	CountryName string
	CountryCode string
	CountryFlag string
	Extra       map[string]json.RawMessage
}

// Address returns the host:port pair shown in channel posts.
func (r Record) Address() string {
	return fmt.Sprintf("%s:%d", r.IP, r.Port)
}

// UnmarshalJSON maps the known keys onto typed fields and keeps the rest
// as raw passthrough.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for key, raw := range fields {
		var err error
		switch key {
		case "ip":
			err = json.Unmarshal(raw, &r.IP)
		case "port":
			// Sources disagree on whether port is a number or a string.
			// An unparsable port leaves the record portless and it is
			// dropped during sanitization.
			if port, perr := parsePort(raw); perr == nil {
				r.Port = port
			}
		case "secret":
			err = json.Unmarshal(raw, &r.Secret)
		case "tg_link":
			err = json.Unmarshal(raw, &r.TGLink)
		case "country_name":
			err = json.Unmarshal(raw, &r.CountryName)
		case "country_code":
			err = json.Unmarshal(raw, &r.CountryCode)
		case "country_flag":
			err = json.Unmarshal(raw, &r.CountryFlag)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]json.RawMessage)
			}
			r.Extra[key] = raw
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

// MarshalJSON writes the typed fields alongside the passthrough bag.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Extra)+7)
	for key, raw := range r.Extra {
		out[key] = raw
	}

	set := func(key string, value any) error {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		out[key] = raw
		return nil
	}

	fields := []struct {
		key     string
		value   any
		present bool
	}{
		{"ip", r.IP, r.IP != ""},
		{"port", r.Port, r.Port != 0},
		{"secret", r.Secret, r.Secret != ""},
		{"tg_link", r.TGLink, r.TGLink != ""},
		{"country_name", r.CountryName, r.CountryName != ""},
		{"country_code", r.CountryCode, r.CountryCode != ""},
		{"country_flag", r.CountryFlag, r.CountryFlag != ""},
	}
	for _, f := range fields {
		if !f.present {
			continue
		}
		if err := set(f.key, f.value); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

func parsePort(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("unsupported port value %s", string(raw))
	}
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse port %q: %w", s, err)
	}
	return n, nil
}
