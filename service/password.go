// file: service/password.go

package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

const (
	saltLength    = 16
	minSaltLength = 16
	algorithmID   = "argon2id"
)

// HashingParams are the argon2id cost parameters.
type HashingParams struct {
	MemoryKB    uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

// PasswordService salts, hashes and verifies passwords. Hashing is CPU bound, so at most
// `workers` hashes run at once; callers past that wait for a slot or for ctx to end.
type PasswordService struct {
	params    HashingParams
	pool      *semaphore.Weighted
	dummySalt []byte
}

// NewPasswordService validates params and builds the bounded hashing pool.
func NewPasswordService(params HashingParams, workers int64) (*PasswordService, error) {
	if params.MemoryKB < 8*1024 || params.Iterations < 1 || params.Parallelism < 1 || params.KeyLength < 16 {
		return nil, errors.New("argon2 parameters below minimum")
	}
	if workers <= 0 {
		return nil, errors.New("hashing workers must be positive")
	}

	dummy := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, dummy); err != nil {
		return nil, err
	}
	return &PasswordService{params: params, pool: semaphore.NewWeighted(workers), dummySalt: dummy}, nil
}

// GenerateSalt returns a fresh random salt for a new credential.
func (s *PasswordService) GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHashingFailure, err)
	}
	return salt, nil
}

// Hash derives the PHC-encoded argon2id hash of password with salt.
// The result is deterministic for the same password, salt and parameters.
func (s *PasswordService) Hash(ctx context.Context, password string, salt []byte) (string, error) {
	if len(salt) < minSaltLength {
		return "", fmt.Errorf("%w: salt too short", ErrHashingFailure)
	}
	key, err := s.derive(ctx, password, salt, s.params)
	if err != nil {
		return "", err
	}
	return encodePHC(s.params, salt, key), nil
}

// Verify recomputes the hash of password with the stored salt and compares it to the
// stored hash in constant time. A malformed hash or salt is an error, not a mismatch.
func (s *PasswordService) Verify(ctx context.Context, password, storedHash string, storedSalt []byte) (bool, error) {
	params, phcSalt, want, err := decodePHC(storedHash)
	if err != nil {
		return false, err
	}
	if len(storedSalt) < minSaltLength || !bytes.Equal(phcSalt, storedSalt) {
		return false, fmt.Errorf("%w: stored salt does not match hash", ErrHashingFailure)
	}

	got, err := s.derive(ctx, password, storedSalt, params)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// SpendDummyHash burns the same work as a real verification. Login calls it for unknown
// accounts so response timing does not reveal whether an email is registered.
func (s *PasswordService) SpendDummyHash(ctx context.Context, password string) {
	_, _ = s.derive(ctx, password, s.dummySalt, s.params)
}

func (s *PasswordService) derive(ctx context.Context, password string, salt []byte, p HashingParams) ([]byte, error) {
	if err := s.pool.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHashingFailure, err)
	}
	defer s.pool.Release(1)

	return argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKB, p.Parallelism, p.KeyLength), nil
}

func encodePHC(p HashingParams, salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version, p.MemoryKB, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func decodePHC(encoded string) (HashingParams, []byte, []byte, error) {
	var p HashingParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, nil, nil, fmt.Errorf("%w: invalid PHC format", ErrHashingFailure)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported argon2 version", ErrHashingFailure)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKB, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("%w: invalid parameters", ErrHashingFailure)
	}
	if p.MemoryKB == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return p, nil, nil, fmt.Errorf("%w: invalid parameters", ErrHashingFailure)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: invalid salt encoding", ErrHashingFailure)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: invalid hash encoding", ErrHashingFailure)
	}
	p.KeyLength = uint32(len(key))
	return p, salt, key, nil
}
