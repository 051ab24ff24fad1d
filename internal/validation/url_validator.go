package validation

import (
	"net"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Register adds the custom "safe_url" rule to the given validator instance.
// Handlers call this once when constructing their validator.
func Register(v *validator.Validate) error {
	return v.RegisterValidation("safe_url", validateSafeURL)
}

func validateSafeURL(fl validator.FieldLevel) bool {
	return IsSafeURL(fl.Field().String())
}

// IsSafeURL reports whether the URL is an http(s) URL pointing at a public
// host. Loopback, private and cloud-metadata addresses are refused so the
// extraction engine is never pointed at internal infrastructure.
func IsSafeURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if u.Host == "" {
		return false
	}

	host := u.Hostname()

	forbiddenHosts := []string{
		"localhost",
		"127.0.0.1",
		"::1",
		"0.0.0.0",
		"169.254.169.254",
	}

	for _, forbidden := range forbiddenHosts {
		if strings.EqualFold(host, forbidden) {
			return false
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() {
			return false
		}
	}

	return true
}
