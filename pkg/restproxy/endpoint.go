package restproxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultBaseURL  = "http://localhost:8082"
	DefaultGroup    = "cg1"
	DefaultInstance = "ci1"

	// ContentTypeJSONV2 is the embedded-JSON format of the v2 REST proxy API.
	ContentTypeJSONV2 = "application/vnd.kafka.json.v2+json"
)

// Endpoint identifies a consumer instance registered with a REST proxy.
type Endpoint struct {
	BaseURL  string
	Group    string
	Instance string
}

// DefaultEndpoint returns the local proxy with consumer cg1/ci1.
func DefaultEndpoint() Endpoint {
	return Endpoint{
		BaseURL:  DefaultBaseURL,
		Group:    DefaultGroup,
		Instance: DefaultInstance,
	}
}

// Validate checks that the endpoint can be turned into a records URL.
func (e Endpoint) Validate() error {
	base := strings.TrimSpace(e.BaseURL)
	if base == "" {
		return errors.New("base url is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url %q must use http or https", base)
	}
	if u.Host == "" {
		return fmt.Errorf("base url %q has no host", base)
	}
	if err := validateSegment("group", e.Group); err != nil {
		return err
	}
	return validateSegment("instance", e.Instance)
}

func validateSegment(name, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return fmt.Errorf("%s is required", name)
	}
	if strings.Contains(v, "/") {
		return fmt.Errorf("%s %q must not contain '/'", name, v)
	}
	return nil
}

// RecordsURL builds {base}/consumers/{group}/instances/{instance}/records.
func (e Endpoint) RecordsURL() (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimSpace(e.BaseURL))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u = u.JoinPath("consumers", strings.TrimSpace(e.Group), "instances", strings.TrimSpace(e.Instance), "records")
	return u.String(), nil
}
