package app

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// basicAuth guards operator endpoints such as /metrics. Credentials are
// compared as SHA-256 digests so the comparison time does not depend on
// their length.
type basicAuth struct {
	challenge string
	user      [sha256.Size]byte
	pass      [sha256.Size]byte
}

func newBasicAuth(realm, username, password string) *basicAuth {
	return &basicAuth{
		challenge: `Basic realm="` + realm + `", charset="UTF-8"`,
		user:      sha256.Sum256([]byte(username)),
		pass:      sha256.Sum256([]byte(password)),
	}
}

func (b *basicAuth) allows(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	gotUser := sha256.Sum256([]byte(user))
	gotPass := sha256.Sum256([]byte(pass))
	// Evaluate both so a wrong username costs the same as a wrong password.
	userOK := subtle.ConstantTimeCompare(gotUser[:], b.user[:])
	passOK := subtle.ConstantTimeCompare(gotPass[:], b.pass[:])
	return userOK&passOK == 1
}

func (b *basicAuth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !b.allows(c.Request) {
			c.Header("WWW-Authenticate", b.challenge)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// metricsAuthMiddleware protects /metrics when enabled and passes through otherwise.
func metricsAuthMiddleware(enabled bool, username, password string) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return newBasicAuth("rtm-metrics", username, password).middleware()
}
