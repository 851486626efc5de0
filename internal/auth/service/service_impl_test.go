package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/menuvia/menuvia/internal/auth/domain"
	"github.com/menuvia/menuvia/internal/auth/repository"
	"github.com/menuvia/menuvia/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Session{}))
	return db
}

type authEnv struct {
	db       *gorm.DB
	svc      domain.Service
	sessions domain.SessionRepository
	clk      *clock.FakeClock
	genID    *snowflake.Node
	userID   snowflake.ID
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	userRepo, sessionRepo := repository.New(db)
	env := &authEnv{
		db:       db,
		svc:      New(zap.NewNop(), userRepo, sessionRepo, clk),
		sessions: sessionRepo,
		clk:      clk,
		genID:    node,
		userID:   node.Generate(),
	}
	require.NoError(t, db.Create(&domain.User{
		ID:        env.userID,
		Email:     "owner@example.com",
		CreatedAt: clk.Now(),
		UpdatedAt: clk.Now(),
	}).Error)
	return env
}

func (env *authEnv) seedSession(t *testing.T, rawToken string, expiresAt time.Time, revokedAt *time.Time) snowflake.ID {
	t.Helper()
	session := domain.Session{
		ID:               env.genID.Generate(),
		UserID:           env.userID,
		SessionTokenHash: HashToken(rawToken),
		ExpiresAt:        expiresAt,
		RevokedAt:        revokedAt,
		CreatedAt:        env.clk.Now(),
		LastSeenAt:       env.clk.Now(),
	}
	require.NoError(t, env.sessions.CreateSession(context.Background(), &session))
	return session.ID
}

func TestAuthenticate(t *testing.T) {
	env := newAuthEnv(t)
	id := env.seedSession(t, "tok_valid", env.clk.Now().Add(24*time.Hour), nil)

	env.clk.Advance(time.Hour)
	session, err := env.svc.Authenticate(context.Background(), "tok_valid")
	require.NoError(t, err)
	assert.Equal(t, id, session.ID)
	assert.Equal(t, env.userID, session.UserID)

	// Raw token must never be stored.
	var count int64
	require.NoError(t, env.db.Model(&domain.Session{}).Where("session_token_hash = ?", "tok_valid").Count(&count).Error)
	assert.Zero(t, count)

	var stored domain.Session
	require.NoError(t, env.db.First(&stored, "id = ?", id).Error)
	assert.True(t, stored.LastSeenAt.Equal(env.clk.Now()), "last seen must advance on use")
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	env := newAuthEnv(t)
	env.seedSession(t, "tok_valid", env.clk.Now().Add(24*time.Hour), nil)

	_, err := env.svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)

	_, err = env.svc.Authenticate(context.Background(), "tok_unknown")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	env := newAuthEnv(t)
	env.seedSession(t, "tok_short", env.clk.Now().Add(time.Hour), nil)

	env.clk.Advance(2 * time.Hour)
	_, err := env.svc.Authenticate(context.Background(), "tok_short")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestAuthenticateRevokedSession(t *testing.T) {
	env := newAuthEnv(t)
	revoked := env.clk.Now().Add(-time.Minute)
	env.seedSession(t, "tok_revoked", env.clk.Now().Add(24*time.Hour), &revoked)

	_, err := env.svc.Authenticate(context.Background(), "tok_revoked")
	assert.ErrorIs(t, err, domain.ErrSessionRevoked)
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newAuthEnv(t)
	env.seedSession(t, "tok_live", env.clk.Now().Add(24*time.Hour), nil)

	require.NoError(t, env.svc.Logout(context.Background(), "tok_live"))

	_, err := env.svc.Authenticate(context.Background(), "tok_live")
	assert.ErrorIs(t, err, domain.ErrSessionRevoked)

	assert.ErrorIs(t, env.svc.Logout(context.Background(), "tok_unknown"), domain.ErrInvalidSession)
}

func TestIsAdmin(t *testing.T) {
	env := newAuthEnv(t)

	admin, err := env.svc.IsAdmin(context.Background(), env.userID)
	require.NoError(t, err)
	assert.False(t, admin)

	require.NoError(t, env.db.Model(&domain.User{}).Where("id = ?", env.userID).Update("is_admin", true).Error)
	admin, err = env.svc.IsAdmin(context.Background(), env.userID)
	require.NoError(t, err)
	assert.True(t, admin)

	// Unknown users are simply not admins, not an error.
	admin, err = env.svc.IsAdmin(context.Background(), env.genID.Generate())
	require.NoError(t, err)
	assert.False(t, admin)
}
