package esign

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// wsseToken builds the X-WSSE UsernameToken header value. The digest is
// base64(sha1(nonce + created + secret)).
func wsseToken(key, secret string, now time.Time) string {
	nonce := uuid.NewString()
	created := now.UTC().Format(time.RFC3339)
	return fmt.Sprintf(`UsernameToken Username="%s", PasswordDigest="%s", Nonce="%s", Created="%s"`,
		key,
		passwordDigest(nonce, created, secret),
		base64.StdEncoding.EncodeToString([]byte(nonce)),
		created,
	)
}

func passwordDigest(nonce, created, secret string) string {
	sum := sha1.Sum([]byte(nonce + created + secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}
