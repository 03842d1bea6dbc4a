package identity

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/careops/callbell/pkg/callbell"
)

// LogTokenIdentity decodes the claims of an issued SQL access token and
// logs who it represents. The signature is deliberately not verified:
// this is diagnostic output, not an authentication decision — the database
// validates the token on connect.
func LogTokenIdentity(logger callbell.Logger, accessToken, flow string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		logger.Verbose("[%s] could not decode token claims: %v", flow, err)
		return
	}

	identity := firstClaim(claims, "display_name", "upn", "preferred_username", "appid")
	if identity == "" {
		identity = "unknown"
	}
	logger.Verbose("[%s] SQL token identity: %s (oid=%s)", flow, identity, firstClaim(claims, "oid"))
}

func firstClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
