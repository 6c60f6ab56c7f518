package service

import (
	"context"
	"database/sql"
	"errors"
	"go-trip-api/model"
	"go-trip-api/repository"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc       *AuthService
	users     *mockUserRepo
	repo      *memTokenRepo
	dbMock    sqlmock.Sqlmock
	passwords *PasswordService
	tokens    *TokenService
	clock     *testClock
}

func newAuthFixture(t *testing.T, limiter *LoginLimiter) *authFixture {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := newTestClock(t0)
	tokens := newTestTokenService(clock)
	repo := newMemTokenRepo()
	users := new(mockUserRepo)
	passwords := newTestPasswordService(t)

	svc := NewAuthService(users, passwords, tokens, NewRefreshTokenStore(db, repo, tokens, clock.Now), limiter, SessionConfig{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: refreshTTL,
	})
	return &authFixture{svc: svc, users: users, repo: repo, dbMock: dbMock, passwords: passwords, tokens: tokens, clock: clock}
}

// userWithPassword returns a member whose credential is password.
func (f *authFixture) userWithPassword(t *testing.T, password string) *model.User {
	t.Helper()
	salt, err := f.passwords.GenerateSalt()
	require.NoError(t, err)
	hash, err := f.passwords.Hash(context.Background(), password, salt)
	require.NoError(t, err)
	user := testUser("user", true)
	user.PasswordHash = &hash
	user.PasswordSalt = salt
	return user
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := f.userWithPassword(t, "password123")
		f.users.On("GetUserByEmail", mock.Anything, "traveler@example.com").Return(user, nil).Once()

		pair, err := f.svc.Login(ctx, "  Traveler@Example.com ", "password123")
		require.NoError(t, err)

		claims, err := f.tokens.VerifyAccess(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.Subject)
		assert.Equal(t, "user", claims.Role)

		record, err := f.repo.GetByTokenHash(ctx, nil, HashRefreshToken(pair.RefreshToken))
		require.NoError(t, err)
		assert.True(t, record.OwnedBy(user.ID))
		f.users.AssertExpectations(t)
	})

	t.Run("failures are indistinguishable", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := f.userWithPassword(t, "password123")
		oauthOnly := testUser("user", true)

		f.users.On("GetUserByEmail", mock.Anything, "traveler@example.com").Return(user, nil).Once()
		f.users.On("GetUserByEmail", mock.Anything, "nobody@example.com").Return(nil, sql.ErrNoRows).Once()
		f.users.On("GetUserByEmail", mock.Anything, "oauth@example.com").Return(oauthOnly, nil).Once()

		_, wrongPassword := f.svc.Login(ctx, "traveler@example.com", "wrong-password")
		_, unknownEmail := f.svc.Login(ctx, "nobody@example.com", "password123")
		_, noCredential := f.svc.Login(ctx, "oauth@example.com", "password123")

		assert.Equal(t, ErrInvalidCredentials, wrongPassword)
		assert.Equal(t, wrongPassword, unknownEmail)
		assert.Equal(t, wrongPassword, noCredential)
		assert.Empty(t, f.repo.rows, "no session is opened on failure")
	})

	t.Run("directory unavailable", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		f.users.On("GetUserByEmail", mock.Anything, "traveler@example.com").Return(nil, sql.ErrConnDone).Once()

		_, err := f.svc.Login(ctx, "traveler@example.com", "password123")
		assert.ErrorIs(t, err, ErrStorageUnavailable)
		assert.False(t, IsUnauthorized(err))
	})

	t.Run("corrupt stored hash is an internal error", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := f.userWithPassword(t, "password123")
		broken := "$argon2id$garbage"
		user.PasswordHash = &broken
		f.users.On("GetUserByEmail", mock.Anything, "traveler@example.com").Return(user, nil).Once()

		_, err := f.svc.Login(ctx, "traveler@example.com", "password123")
		assert.ErrorIs(t, err, ErrHashingFailure)
		assert.False(t, IsUnauthorized(err))
	})

	t.Run("unknown stored role", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := f.userWithPassword(t, "password123")
		user.Role = "superuser"
		f.users.On("GetUserByEmail", mock.Anything, "traveler@example.com").Return(user, nil).Once()

		_, err := f.svc.Login(ctx, "traveler@example.com", "password123")
		assert.ErrorIs(t, err, ErrCorruptRecord)
		assert.NotErrorIs(t, err, model.ErrInvalidRole, "must not map to a client error")
		assert.False(t, IsUnauthorized(err))
		assert.Empty(t, f.repo.rows, "no session is opened")
	})
}

func TestAuthService_Login_Throttled(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	f := newAuthFixture(t, NewLoginLimiter(rdb, 2, time.Minute))
	user := f.userWithPassword(t, "password123")
	f.users.On("GetUserByEmail", mock.Anything, "traveler@example.com").Return(user, nil)

	for i := 0; i < 2; i++ {
		_, err := f.svc.Login(ctx, "traveler@example.com", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := f.svc.Login(ctx, "traveler@example.com", "password123")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	mr.FastForward(time.Minute + time.Second)
	_, err = f.svc.Login(ctx, "traveler@example.com", "password123")
	assert.NoError(t, err)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	req := model.RegisterRequest{Username: " wanderer ", Email: "Wanderer@Example.com", Password: "password123"}

	t.Run("success", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		newID := uuid.New()
		f.users.On("CreateUser", mock.Anything, mock.AnythingOfType("*model.User")).
			Run(func(args mock.Arguments) { args.Get(1).(*model.User).ID = newID }).
			Return(nil).Once()

		user, pair, err := f.svc.Register(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, newID, user.ID)
		assert.Equal(t, "wanderer", user.Username)
		assert.Equal(t, "wanderer@example.com", user.Email)
		assert.Equal(t, "user", user.Role)
		require.True(t, user.HasCredential())

		ok, err := f.passwords.Verify(ctx, "password123", *user.PasswordHash, user.PasswordSalt)
		require.NoError(t, err)
		assert.True(t, ok)

		claims, err := f.tokens.VerifyAccess(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, newID.String(), claims.Subject)
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		f.users.On("CreateUser", mock.Anything, mock.Anything).Return(repository.ErrDuplicateEmail).Once()

		_, _, err := f.svc.Register(ctx, req)
		assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
		assert.Empty(t, f.repo.rows)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("success rotates the token", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := testUser("admin", true)
		raw, _, err := f.svc.refresh.Create(ctx, user.ID, refreshTTL)
		require.NoError(t, err)
		f.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
		f.dbMock.ExpectBegin()
		f.dbMock.ExpectCommit()

		pair, err := f.svc.Refresh(ctx, raw)
		require.NoError(t, err)
		assert.NotEqual(t, raw, pair.RefreshToken)

		claims, err := f.tokens.VerifyAccess(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Role)

		_, err = f.svc.Refresh(ctx, raw)
		assert.ErrorIs(t, err, ErrTokenRevoked)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		_, err := f.svc.Refresh(ctx, "never-issued")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := testUser("user", true)
		raw, _, _ := f.svc.refresh.Create(ctx, user.ID, refreshTTL)
		f.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()

		f.clock.Advance(refreshTTL + time.Second)
		_, err := f.svc.Refresh(ctx, raw)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("owner deleted", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := testUser("user", true)
		raw, _, _ := f.svc.refresh.Create(ctx, user.ID, refreshTTL)
		f.users.On("GetUserByID", mock.Anything, user.ID).Return(nil, sql.ErrNoRows).Once()

		_, err := f.svc.Refresh(ctx, raw)
		assert.ErrorIs(t, err, ErrPrincipalNotFound)
	})

	t.Run("orphaned record", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		raw, record, _ := f.svc.refresh.Create(ctx, uuid.New(), refreshTTL)
		row := f.repo.rows[record.TokenHash]
		row.UserID = uuid.NullUUID{}
		f.repo.rows[record.TokenHash] = row

		_, err := f.svc.Refresh(ctx, raw)
		assert.ErrorIs(t, err, ErrPrincipalNotFound)
		f.users.AssertNotCalled(t, "GetUserByID")
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, nil)
	owner := &model.Principal{User: testUser("user", true), Role: model.RoleMember}
	stranger := &model.Principal{User: testUser("admin", true), Role: model.RoleAdmin}

	raw, _, err := f.svc.refresh.Create(ctx, owner.User.ID, refreshTTL)
	require.NoError(t, err)

	t.Run("someone else's token", func(t *testing.T) {
		err := f.svc.Logout(ctx, raw, stranger)
		assert.ErrorIs(t, err, ErrTokenOwnership)
		record, _ := f.svc.refresh.Find(ctx, raw)
		assert.False(t, record.Revoked)
	})

	t.Run("own token", func(t *testing.T) {
		require.NoError(t, f.svc.Logout(ctx, raw, owner))
		record, _ := f.svc.refresh.Find(ctx, raw)
		assert.True(t, record.Revoked)
	})

	t.Run("already revoked", func(t *testing.T) {
		err := f.svc.Logout(ctx, raw, owner)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("unknown token", func(t *testing.T) {
		err := f.svc.Logout(ctx, "never-issued", owner)
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}

func TestAuthService_LogoutAll(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, nil)
	principal := &model.Principal{User: testUser("user", true), Role: model.RoleMember}
	other := uuid.New()

	for i := 0; i < 2; i++ {
		_, _, err := f.svc.refresh.Create(ctx, principal.User.ID, refreshTTL)
		require.NoError(t, err)
	}
	_, _, err := f.svc.refresh.Create(ctx, other, refreshTTL)
	require.NoError(t, err)

	n, err := f.svc.LogoutAll(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, f.repo.activeFor(other), 1)
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong current password", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := f.userWithPassword(t, "password123")
		principal := &model.Principal{User: user, Role: model.RoleMember}

		err := f.svc.ChangePassword(ctx, principal, "nope", "new-password-456")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		f.users.AssertNotCalled(t, "UpdatePassword")
	})

	t.Run("success revokes every session", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := f.userWithPassword(t, "password123")
		principal := &model.Principal{User: user, Role: model.RoleMember}
		_, _, err := f.svc.refresh.Create(ctx, user.ID, refreshTTL)
		require.NoError(t, err)

		var newHash string
		var newSalt []byte
		f.users.On("UpdatePassword", mock.Anything, mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("[]uint8")).
			Run(func(args mock.Arguments) {
				newHash = args.String(3)
				newSalt = args.Get(4).([]byte)
			}).
			Return(nil).Once()
		f.dbMock.ExpectBegin()
		f.dbMock.ExpectCommit()

		require.NoError(t, f.svc.ChangePassword(ctx, principal, "password123", "new-password-456"))
		f.users.AssertExpectations(t)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
		assert.Empty(t, f.repo.activeFor(user.ID))

		ok, err := f.passwords.Verify(ctx, "new-password-456", newHash, newSalt)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NotEqual(t, user.PasswordSalt, newSalt)
	})
}

func TestAuthService_Lineage(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, nil)
	user := testUser("user", true)
	principal := &model.Principal{User: user, Role: model.RoleMember}
	f.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	raw, _, err := f.svc.refresh.Create(ctx, user.ID, refreshTTL)
	require.NoError(t, err)
	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()
	pair, err := f.svc.Refresh(ctx, raw)
	require.NoError(t, err)

	chain, err := f.svc.Lineage(ctx, pair.RefreshToken, principal)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, HashRefreshToken(pair.RefreshToken), chain[0].TokenHash)
	assert.Equal(t, HashRefreshToken(raw), chain[1].TokenHash)

	_, err = f.svc.Lineage(ctx, pair.RefreshToken, &model.Principal{User: testUser("user", true)})
	assert.ErrorIs(t, err, ErrTokenOwnership)
}

func TestAuthService_DeleteUser(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes sessions and deletes", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		id := uuid.New()
		_, _, err := f.svc.refresh.Create(ctx, id, refreshTTL)
		require.NoError(t, err)
		f.users.On("DeleteUser", mock.Anything, mock.Anything, id).Return(nil).Once()
		f.dbMock.ExpectBegin()
		f.dbMock.ExpectCommit()

		require.NoError(t, f.svc.DeleteUser(ctx, id))
		assert.Empty(t, f.repo.activeFor(id))
		f.users.AssertExpectations(t)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		id := uuid.New()
		f.users.On("DeleteUser", mock.Anything, mock.Anything, id).Return(sql.ErrNoRows).Once()
		f.dbMock.ExpectBegin()
		f.dbMock.ExpectRollback()

		err := f.svc.DeleteUser(ctx, id)
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})
}

// sqlAuthFixture runs AuthService over the real repositories on a sqlmock pool, so the
// statements of one operation can be checked against its transaction boundaries.
type sqlAuthFixture struct {
	svc       *AuthService
	dbMock    sqlmock.Sqlmock
	passwords *PasswordService
}

func newSQLAuthFixture(t *testing.T) *sqlAuthFixture {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := newTestClock(t0)
	tokens := newTestTokenService(clock)
	passwords := newTestPasswordService(t)
	store := NewRefreshTokenStore(db, repository.NewTokenRepository(), tokens, clock.Now)
	svc := NewAuthService(repository.NewUserRepository(db), passwords, tokens, store, nil, SessionConfig{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: refreshTTL,
	})
	return &sqlAuthFixture{svc: svc, dbMock: dbMock, passwords: passwords}
}

func TestAuthService_ChangePassword_Atomic(t *testing.T) {
	ctx := context.Background()
	updatePassword := regexp.QuoteMeta("UPDATE users SET password_hash = $1, password_salt = $2 WHERE id = $3")
	revokeAll := regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE")

	newPrincipal := func(t *testing.T, f *sqlAuthFixture) *model.Principal {
		salt, err := f.passwords.GenerateSalt()
		require.NoError(t, err)
		hash, err := f.passwords.Hash(ctx, "password123", salt)
		require.NoError(t, err)
		user := testUser("user", true)
		user.PasswordHash = &hash
		user.PasswordSalt = salt
		return &model.Principal{User: user, Role: model.RoleMember}
	}

	t.Run("update and revoke commit together", func(t *testing.T) {
		f := newSQLAuthFixture(t)
		principal := newPrincipal(t, f)
		id := principal.User.ID.String()

		f.dbMock.ExpectBegin()
		f.dbMock.ExpectExec(updatePassword).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), id).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.dbMock.ExpectExec(revokeAll).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 3))
		f.dbMock.ExpectCommit()

		require.NoError(t, f.svc.ChangePassword(ctx, principal, "password123", "new-password-456"))
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("failed revoke rolls back the new password", func(t *testing.T) {
		f := newSQLAuthFixture(t)
		principal := newPrincipal(t, f)
		id := principal.User.ID.String()

		f.dbMock.ExpectBegin()
		f.dbMock.ExpectExec(updatePassword).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), id).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.dbMock.ExpectExec(revokeAll).WithArgs(id).WillReturnError(errors.New("connection refused"))
		f.dbMock.ExpectRollback()

		err := f.svc.ChangePassword(ctx, principal, "password123", "new-password-456")
		assert.ErrorIs(t, err, ErrStorageUnavailable)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("vanished user rolls back", func(t *testing.T) {
		f := newSQLAuthFixture(t)
		principal := newPrincipal(t, f)

		f.dbMock.ExpectBegin()
		f.dbMock.ExpectExec(updatePassword).WillReturnResult(sqlmock.NewResult(0, 0))
		f.dbMock.ExpectRollback()

		err := f.svc.ChangePassword(ctx, principal, "password123", "new-password-456")
		assert.ErrorIs(t, err, ErrPrincipalNotFound)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})
}

func TestAuthService_DeleteUser_Atomic(t *testing.T) {
	ctx := context.Background()
	revokeAll := regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE")
	deleteUser := regexp.QuoteMeta("DELETE FROM users WHERE id = $1")

	t.Run("revoke then delete in one commit", func(t *testing.T) {
		f := newSQLAuthFixture(t)
		id := uuid.New()

		f.dbMock.ExpectBegin()
		f.dbMock.ExpectExec(revokeAll).WithArgs(id.String()).WillReturnResult(sqlmock.NewResult(0, 2))
		f.dbMock.ExpectExec(deleteUser).WithArgs(id.String()).WillReturnResult(sqlmock.NewResult(0, 1))
		f.dbMock.ExpectCommit()

		require.NoError(t, f.svc.DeleteUser(ctx, id))
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("failed delete keeps the sessions", func(t *testing.T) {
		f := newSQLAuthFixture(t)
		id := uuid.New()

		f.dbMock.ExpectBegin()
		f.dbMock.ExpectExec(revokeAll).WithArgs(id.String()).WillReturnResult(sqlmock.NewResult(0, 2))
		f.dbMock.ExpectExec(deleteUser).WithArgs(id.String()).WillReturnError(errors.New("connection refused"))
		f.dbMock.ExpectRollback()

		err := f.svc.DeleteUser(ctx, id)
		assert.ErrorIs(t, err, ErrStorageUnavailable)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})
}
