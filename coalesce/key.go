package coalesce

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Key identifies a logical request. It is either a StringKey or a
// StructuredKey.
type Key interface {
	normalize() string
}

// StringKey is used verbatim.
type StringKey string

// StructuredKey describes a request by its parameters. Two structured keys with
// the same entries normalize to the same string regardless of insertion order.
type StructuredKey map[string]any

func (k StringKey) normalize() string { return string(k) }

func (k StructuredKey) normalize() string {
	if len(k) == 0 {
		return "{}"
	}
	// ConfigStd sorts map keys at every level.
	data, err := sonic.ConfigStd.Marshal(map[string]any(k))
	if err != nil {
		return fmt.Sprint(map[string]any(k))
	}
	return string(data)
}

// Normalize returns the canonical registry key for k.
func Normalize(k Key) string {
	if k == nil {
		return ""
	}
	return k.normalize()
}
