package identity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger captures log lines for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Verbose(format string, args ...interface{}) { l.append(format, args...) }
func (l *recordingLogger) Info(format string, args ...interface{})    { l.append(format, args...) }
func (l *recordingLogger) Error(format string, args ...interface{})   { l.append(format, args...) }

func (l *recordingLogger) append(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

// unsignedJWT builds header.claims.signature with an unverifiable signature,
// which is all ParseUnverified needs.
func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	encode := func(v any) string {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(raw)
	}
	header := map[string]any{"alg": "RS256", "typ": "JWT"}
	return encode(header) + "." + encode(claims) + ".x"
}

func TestLogTokenIdentity_UserToken(t *testing.T) {
	logger := &recordingLogger{}
	token := unsignedJWT(t, map[string]any{
		"upn": "nurse@example.org",
		"oid": "oid-123",
	})

	LogTokenIdentity(logger, token, "Delegated")

	out := logger.joined()
	assert.Contains(t, out, "nurse@example.org")
	assert.Contains(t, out, "oid-123")
	assert.Contains(t, out, "Delegated")
}

func TestLogTokenIdentity_AppToken(t *testing.T) {
	logger := &recordingLogger{}
	token := unsignedJWT(t, map[string]any{
		"appid": "client-guid",
	})

	LogTokenIdentity(logger, token, "ServicePrincipal")

	assert.Contains(t, logger.joined(), "client-guid")
}

func TestLogTokenIdentity_ClaimPrecedence(t *testing.T) {
	logger := &recordingLogger{}
	token := unsignedJWT(t, map[string]any{
		"display_name":       "Pat Nurse",
		"upn":                "nurse@example.org",
		"preferred_username": "pat",
	})

	LogTokenIdentity(logger, token, "Delegated")

	assert.Contains(t, logger.joined(), "Pat Nurse", "display_name wins over the other claims")
}

func TestLogTokenIdentity_GarbageTokenDoesNotPanic(t *testing.T) {
	logger := &recordingLogger{}

	LogTokenIdentity(logger, "not-a-jwt", "Delegated")

	assert.Contains(t, logger.joined(), "could not decode")
}
