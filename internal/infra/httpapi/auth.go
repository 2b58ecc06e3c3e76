package httpapi

import (
	"strings"

	"club_billing_portal/internal/app"
	"club_billing_portal/internal/domain/member"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

// Claims is the token payload issued by the identity collaborator. This
// service only verifies; it never mints tokens.
type Claims struct {
	MemberID int64  `json:"member_id"`
	Position string `json:"position"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer token and stores the resulting
// actor in the request context.
func AuthMiddleware(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var tokenString string
		auth := c.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			tokenString = strings.TrimPrefix(auth, "Bearer ")
		}
		if tokenString == "" {
			return unauthorized(c, "No token found")
		}

		claims, err := validateToken(tokenString, secret)
		if err != nil {
			return unauthorized(c, "Invalid token")
		}

		c.Locals(actorKey, app.Actor{
			MemberID: claims.MemberID,
			Position: member.ClubPosition(claims.Position),
		})
		return c.Next()
	}
}

// RequireOfficer gates admin routes on the actor's club position.
func RequireOfficer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !actorFrom(c).IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Insufficient permissions",
			})
		}
		return c.Next()
	}
}

func actorFrom(c *fiber.Ctx) app.Actor {
	actor, _ := c.Locals(actorKey).(app.Actor)
	return actor
}

func validateToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrInvalidKey
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
