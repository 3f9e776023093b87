package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

var (
	salt    = []byte("coffeehubnepal.core.user.token_gen")
	NowFunc = time.Now // mockable

	tsEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// tokenGenerator makes & checks stateless password reset tokens of the form `<uid>.<ts>.<sig>`.
// A token is invalidated by a password change or a new login since its signature covers both.
type tokenGenerator struct {
	secret   []byte
	lifetime time.Duration
}

func newTokenGenerator(secret string, lifetime time.Duration) tokenGenerator {
	return tokenGenerator{secret: []byte(secret), lifetime: lifetime}
}

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

// decodeUID base64 decodes given UID
func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// MakeToken generates a password reset token for a given User.
func (tg tokenGenerator) MakeToken(usr User) string {
	return tg.makeTokenWithTimestamp(usr, secondsSince2001(NowFunc()))
}

// parseToken extracts the user id from a token, without checking its signature.
func parseToken(token string) (id string, ts int, err error) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 {
		return "", 0, ErrInvalidToken
	}
	if id, err = decodeUID(parts[0]); err != nil || id == "" {
		return "", 0, ErrInvalidToken
	}
	data, err := tsEncoding.DecodeString(parts[1])
	if err != nil {
		return "", 0, ErrInvalidToken
	}
	if ts, err = strconv.Atoi(string(data)); err != nil {
		return "", 0, ErrInvalidToken
	}
	return id, ts, nil
}

// VerifyToken checks that a password reset token for a given User is valid.
func (tg tokenGenerator) VerifyToken(usr User, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	_, ts, err := parseToken(token)
	if err != nil {
		return err
	}

	// check that token has not been tampered with
	if subtle.ConstantTimeCompare([]byte(tg.makeTokenWithTimestamp(usr, ts)), []byte(token)) == 0 {
		return ErrInvalidToken
	}

	// check that the timestamp is within limit
	if secondsSince2001(NowFunc())-ts > int(tg.lifetime/time.Second) {
		return ErrTokenExpired
	}
	return nil
}

func (tg tokenGenerator) makeTokenWithTimestamp(usr User, ts int) string {
	tsB32 := tsEncoding.EncodeToString([]byte(strconv.Itoa(ts)))
	return EncodeUID(usr) + "." + tsB32 + "." + tg.sign(hashValue(usr, ts))
}

func (tg tokenGenerator) sign(val []byte) string {
	key := sha256.Sum256(append(append([]byte{}, salt...), tg.secret...))
	h := hmac.New(sha256.New, key[:])
	h.Write(val)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func secondsSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(ref) / time.Second)
}

func hashValue(usr User, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(usr.ID)
	val.Write(usr.PasswordHash)
	if usr.LastLogin != nil {
		val.WriteString(usr.LastLogin.UTC().Format(time.RFC3339Nano))
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
