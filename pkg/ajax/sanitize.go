package ajax

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// TokenField is the form field carrying the security token.
const TokenField = "nonce"

var forbidden = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "`", "")

// Sanitize strips the characters <>"'` and surrounding whitespace.
func Sanitize(s string) string {
	return strings.TrimSpace(forbidden.Replace(s))
}

// encodeForm builds the form body for one request. String values are sanitized; the
// token is merged last so a payload key cannot override it.
func encodeForm(action, token string, payload Payload) url.Values {
	form := url.Values{}
	form.Set("action", Sanitize(action))

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := Sanitize(k)
		if key == "" || key == "action" || key == TokenField {
			continue
		}
		form.Set(key, formatValue(payload[k]))
	}
	form.Set(TokenField, token)
	return form
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return Sanitize(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return Sanitize(val.String())
	default:
		return Sanitize(fmt.Sprintf("%v", val))
	}
}
