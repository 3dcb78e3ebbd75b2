// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielhkuo/votegate/models"
)

// Field names, in canonical order
const (
	FieldUserAgent           = "userAgent"
	FieldPlatform            = "platform"
	FieldModel               = "model"
	FieldScreenWidth         = "screenWidth"
	FieldScreenHeight        = "screenHeight"
	FieldColorDepth          = "colorDepth"
	FieldLanguage            = "language"
	FieldTimezone            = "timezone"
	FieldHardwareConcurrency = "hardwareConcurrency"
	FieldDeviceMemory        = "deviceMemory"
	FieldTouchSupport        = "touchSupport"
)

// AllFields is the default attribute set
var AllFields = []string{
	FieldUserAgent,
	FieldPlatform,
	FieldModel,
	FieldScreenWidth,
	FieldScreenHeight,
	FieldColorDepth,
	FieldLanguage,
	FieldTimezone,
	FieldHardwareConcurrency,
	FieldDeviceMemory,
	FieldTouchSupport,
}

// Signals is the merged attribute set a signature is computed from.
// Empty strings mean "not observed".
type Signals map[string]string

// FromRequest extracts the server-observed signals: user agent, client hint
// platform and model, and the primary Accept-Language subtag.
func FromRequest(r *http.Request) Signals {
	s := Signals{
		FieldUserAgent: r.UserAgent(),
		FieldPlatform:  strings.Trim(r.Header.Get("Sec-CH-UA-Platform"), `"`),
		FieldModel:     strings.Trim(r.Header.Get("Sec-CH-UA-Model"), `"`),
	}

	if al := r.Header.Get("Accept-Language"); al != "" {
		first, _, _ := strings.Cut(al, ",")
		first, _, _ = strings.Cut(first, ";")
		lang, _, _ := strings.Cut(strings.TrimSpace(first), "-")
		s[FieldLanguage] = lang
	}

	return s
}

// FromClient converts browser-reported attributes into signals
func FromClient(c *models.ClientSignals) Signals {
	s := Signals{}
	if c == nil {
		return s
	}

	putInt(s, FieldScreenWidth, c.ScreenWidth)
	putInt(s, FieldScreenHeight, c.ScreenHeight)
	putInt(s, FieldColorDepth, c.ColorDepth)
	putInt(s, FieldHardwareConcurrency, c.HardwareConcurrency)
	s[FieldLanguage] = c.Language
	s[FieldTimezone] = c.Timezone
	if c.DeviceMemory != nil {
		s[FieldDeviceMemory] = strconv.FormatFloat(*c.DeviceMemory, 'f', -1, 64)
	}
	if c.TouchSupport != nil {
		s[FieldTouchSupport] = strconv.FormatBool(*c.TouchSupport)
	}

	return s
}

func putInt(s Signals, field string, v *int) {
	if v != nil {
		s[field] = strconv.Itoa(*v)
	}
}

// Merge combines server and client signals. A client value wins whenever it
// is present.
func Merge(server, client Signals) Signals {
	out := make(Signals, len(server)+len(client))
	for k, v := range server {
		out[k] = v
	}
	for k, v := range client {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Hasher turns signals into a fixed-length device signature.
//
// The signature is a heuristic. Identically configured browsers collide, and
// changing any tracked attribute produces a new signature. The field set is
// the knob for trading false positives against false negatives.
type Hasher struct {
	secret string
	fields []string
}

// NewHasher creates a hasher over the given fields. No fields means all of
// them. Unknown field names are rejected.
func NewHasher(secret string, fields []string) (*Hasher, error) {
	if len(fields) == 0 {
		fields = AllFields
	}

	known := make(map[string]bool, len(AllFields))
	for _, f := range AllFields {
		known[f] = true
	}

	// Keep canonical order regardless of how fields were configured
	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !known[f] {
			return nil, fmt.Errorf("unknown fingerprint field %q", f)
		}
		wanted[f] = true
	}
	ordered := make([]string, 0, len(wanted))
	for _, f := range AllFields {
		if wanted[f] {
			ordered = append(ordered, f)
		}
	}

	return &Hasher{secret: secret, fields: ordered}, nil
}

// Fields returns the attributes in canonical order
func (h *Hasher) Fields() []string {
	return append([]string(nil), h.fields...)
}

// Canonical serializes the configured fields in fixed order
func (h *Hasher) Canonical(s Signals) string {
	parts := make([]string, len(h.fields))
	for i, f := range h.fields {
		parts[i] = s[f]
	}
	return strings.Join(parts, "|")
}

// Fingerprint merges server and client signals and returns the hex SHA-256
// of the canonical string salted with the secret.
func (h *Hasher) Fingerprint(server, client Signals) string {
	merged := Merge(server, client)
	sum := sha256.Sum256([]byte(h.Canonical(merged) + "|" + h.secret))
	return hex.EncodeToString(sum[:])
}
