package auth

import (
	"context"
	"errors"
	"time"

	"matchserver/internal/config"
	"matchserver/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
)

var jwtKey = []byte(config.Config.JWTSecret)

var ErrInvalidToken = errors.New("auth: invalid or revoked token")

// Claims carries the verified identity. PlayerID is opaque to the
// matchmaking core.
type Claims struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// VerifyToken checks the token signature and returns its claims. Pure
// signature check, no store lookup.
func VerifyToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return jwtKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.PlayerID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken verifies the signature and confirms the token is still
// active in the user_tokens collection, refreshing its active_at stamp.
func ValidateToken(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := VerifyToken(tokenStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	collection := db.MongoDatabase.Collection("user_tokens")

	filter := bson.M{
		"player_id": claims.PlayerID,
		"token":     tokenStr,
	}

	var result struct {
		Username string `bson:"username"`
	}
	if err := collection.FindOne(ctx, filter).Decode(&result); err != nil {
		return nil, ErrInvalidToken
	}
	if result.Username != claims.Username {
		return nil, ErrInvalidToken
	}

	update := bson.M{
		"$set": bson.M{
			"active_at": time.Now(),
		},
	}
	_, _ = collection.UpdateOne(ctx, filter, update)

	return claims, nil
}

// GenerateToken signs a token for a player and stores it as active.
// Used by the identity issuer; the matchmaking core only validates.
func GenerateToken(ctx context.Context, playerID, username string) (string, error) {
	claims := &Claims{
		PlayerID: playerID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtKey)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	collection := db.MongoDatabase.Collection("user_tokens")
	doc := bson.M{
		"player_id": playerID,
		"username":  username,
		"token":     token,
		"active_at": time.Now(),
	}
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		return "", err
	}

	return token, nil
}

// SignToken signs claims without touching the token store. Test helper
// and issuer building block.
func SignToken(claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtKey)
}
