package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	Logout(ctx context.Context, rawToken string) error
	IsAdmin(ctx context.Context, userID snowflake.ID) (bool, error)
}
