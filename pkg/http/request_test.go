package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "memberauth/pkg/http"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP(t *testing.T) {
	trusted := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		config     *pkghttp.IPConfig
		want       string
	}{
		{
			name:       "plain remote addr",
			remoteAddr: "203.0.113.7:51234",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded-for honored from trusted proxy",
			remoteAddr: "10.1.2.3:443",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4, 10.1.2.3"},
			config:     trusted,
			want:       "198.51.100.4",
		},
		{
			name:       "forwarded-for ignored from untrusted source",
			remoteAddr: "203.0.113.7:51234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4"},
			config:     trusted,
			want:       "203.0.113.7",
		},
		{
			name:       "real-ip honored from trusted proxy",
			remoteAddr: "10.1.2.3:443",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			config:     trusted,
			want:       "198.51.100.9",
		},
		{
			name:       "garbage forwarded-for falls through",
			remoteAddr: "10.1.2.3:443",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			config:     trusted,
			want:       "10.1.2.3",
		},
		{
			name:       "nil config never trusts headers",
			remoteAddr: "10.1.2.3:443",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4"},
			want:       "10.1.2.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, pkghttp.ExtractClientIP(r, tt.config))
		})
	}
}
