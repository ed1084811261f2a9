package authgate

import (
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"
)

// fingerprint identifies a refresh token in logs, audit events, and throttle
// keys without revealing it.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func sessionField(fp string) zap.Field {
	return zap.String("session", fp)
}
