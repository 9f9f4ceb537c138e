package transformer

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

var pathEscaper = strings.NewReplacer(
	`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`,
)

// MetadataValue returns the first of paths present in the raw sample
// metadata. A path is tried as a nested path first and then as a literal
// key, so both {"flavor": {"name": …}} and {"flavor.name": …} resolve.
func MetadataValue(raw json.RawMessage, paths ...string) (gjson.Result, bool) {
	if len(raw) == 0 {
		return gjson.Result{}, false
	}
	for _, path := range paths {
		if r := gjson.GetBytes(raw, path); r.Exists() && r.Type != gjson.Null {
			return r, true
		}
		if r := gjson.GetBytes(raw, pathEscaper.Replace(path)); r.Exists() && r.Type != gjson.Null {
			return r, true
		}
	}
	return gjson.Result{}, false
}

// MetadataString is MetadataValue rendered as a string.
func MetadataString(raw json.RawMessage, paths ...string) (string, bool) {
	r, ok := MetadataValue(raw, paths...)
	if !ok {
		return "", false
	}
	return r.String(), true
}
