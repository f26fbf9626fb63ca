package upstream

import (
	"fmt"
	"strings"
	"time"
)

// wireTime tolerates the timestamp formats the upstream service is known to
// emit: RFC 3339 and the RFC 1123 form its JSON layer produces for datetimes
// ("Wed, 21 Oct 2015 07:28:00 GMT").
type wireTime time.Time

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = wireTime(time.Time{})
		return nil
	}
	for _, layout := range wireTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = wireTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t wireTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339Nano) + `"`), nil
}
