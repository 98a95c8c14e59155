package model

import "fmt"

// APIErrorCode is the outcome attached to every call made against github
// and to every aggregation result
type APIErrorCode int

const (
	NoError           APIErrorCode = 200
	RateLimitExceeded APIErrorCode = 1001
	OtherError        APIErrorCode = 1002
)

func (c APIErrorCode) String() string {
	switch c {
	case NoError:
		return "NoError"
	case RateLimitExceeded:
		return "RateLimitExceeded"
	case OtherError:
		return "OtherError"
	default:
		return fmt.Sprintf("APIErrorCode(%d)", int(c))
	}
}

// MarshalText serializes the code using its name so the JSON output is readable
func (c APIErrorCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *APIErrorCode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "NoError":
		*c = NoError
	case "RateLimitExceeded":
		*c = RateLimitExceeded
	case "OtherError":
		*c = OtherError
	default:
		return fmt.Errorf("unknown api error code %q", string(text))
	}

	return nil
}
