package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issued = time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)

func TestVerifier_Parse(t *testing.T) {
	now := func() time.Time { return issued.Add(time.Minute) }
	v := NewVerifier("secret", now)

	t.Run("valid token", func(t *testing.T) {
		raw, err := Sign("secret", "patient-1", "patient", issued, 15*time.Minute)
		require.NoError(t, err)

		c, err := v.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "patient-1", c.UserID)
		assert.Equal(t, "patient", c.Role)
	})

	t.Run("wrong secret", func(t *testing.T) {
		raw, err := Sign("other", "patient-1", "patient", issued, 15*time.Minute)
		require.NoError(t, err)

		_, err = v.Parse(raw)
		assert.ErrorIs(t, err, ErrBadToken)
	})

	t.Run("expired", func(t *testing.T) {
		raw, err := Sign("secret", "patient-1", "patient", issued.Add(-time.Hour), 15*time.Minute)
		require.NoError(t, err)

		_, err = v.Parse(raw)
		assert.ErrorIs(t, err, ErrBadToken)
	})

	t.Run("missing uid", func(t *testing.T) {
		raw, err := Sign("secret", "", "patient", issued, 15*time.Minute)
		require.NoError(t, err)

		_, err = v.Parse(raw)
		assert.ErrorIs(t, err, ErrBadToken)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			UserID: "patient-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
			},
		})
		raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = v.Parse(raw)
		assert.ErrorIs(t, err, ErrBadToken)
	})
}
