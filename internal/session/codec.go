// Package session は署名付きセッショントークンの発行と検証を提供する。
// トークンはHTTP Only Cookieでクライアントに保持され、Google IDと有効期限のみを運ぶ。
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken は署名不一致または期限切れのトークンを表す。
// 形式は正しいが未知のGoogle IDを含むトークンはここでは弾かず、
// 上の層でユーザーレコードの不在として検出する。
var ErrInvalidToken = errors.New("invalid session token")

// Claims はセッショントークンに埋め込むクレーム。
type Claims struct {
	GoogleID string `json:"googleId"`
	jwt.RegisteredClaims
}

// Codec はHS256署名のセッショントークンを発行・検証する。
type Codec struct {
	secret []byte
	maxAge time.Duration
}

// NewCodec はCodecを生成する。maxAgeは発行するトークンの有効期間。
func NewCodec(secret string, maxAge time.Duration) *Codec {
	return &Codec{
		secret: []byte(secret),
		maxAge: maxAge,
	}
}

// Issue は指定Google IDを埋め込んだ署名付きトークンを発行する。
func (c *Codec) Issue(googleID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		GoogleID: googleID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、埋め込まれたGoogle IDを返す。
// 署名不一致・期限切れ・アルゴリズム不一致はすべてErrInvalidTokenになる。
func (c *Codec) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.GoogleID == "" {
		return "", ErrInvalidToken
	}
	return claims.GoogleID, nil
}
