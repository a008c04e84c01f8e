package fetch

import "net/url"

// secretParams are query parameters that must never reach logs or errors.
var secretParams = []string{"access_token", "key", "appsecret_proof"}

// redact masks credential query parameters in rawURL.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	changed := false
	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
