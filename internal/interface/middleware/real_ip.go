package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ConfigureClientIP makes c.ClientIP() honour forwarding headers only when the
// direct peer is one of proxies (IPs or CIDRs). With no proxies the socket
// address is used as is. platform names a CDN whose client-IP header is
// trusted outright: "cloudflare", "google", or a raw header name.
func ConfigureClientIP(r *gin.Engine, proxies []string, platform string) error {
	if len(proxies) == 0 {
		proxies = nil
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "":
		r.TrustedPlatform = ""
	case "cloudflare":
		r.TrustedPlatform = gin.PlatformCloudflare
	case "google", "appengine":
		r.TrustedPlatform = gin.PlatformGoogleAppEngine
	default:
		r.TrustedPlatform = strings.TrimSpace(platform)
	}
	return nil
}

// RealIP stores the client IP resolved by gin under "real_ip".
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("real_ip", c.ClientIP())
		c.Next()
	}
}
