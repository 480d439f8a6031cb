package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotate_ReplacesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.login(t)

	b, err := env.store.Rotate(ctx, a.RefreshToken, ClientInfo{IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.NotEqual(t, a.RefreshToken, b.RefreshToken)
	assert.NotEmpty(t, b.AccessToken)

	_, _, err = env.store.Verify(ctx, a.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = env.store.Verify(ctx, b.RefreshToken)
	assert.NoError(t, err)

	// reapresentar A depois de B ter sido emitido também falha
	_, err = env.store.Rotate(ctx, a.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = env.store.Verify(ctx, b.RefreshToken)
	assert.NoError(t, err, "sem RevokeFamilyOnReuse o token B continua válido")
}

func TestRotate_LinksLineage(t *testing.T) {
	env := newTestEnv(t)
	a := env.login(t)
	b, err := env.store.Rotate(context.Background(), a.RefreshToken, ClientInfo{})
	require.NoError(t, err)

	var old RefreshToken
	require.NoError(t, env.db.Where("token_hash = ?", HashToken(a.RefreshToken)).First(&old).Error)
	assert.True(t, old.Revoked)
	require.NotNil(t, old.RevokedAt)
	require.NotNil(t, old.ReplacedByTokenHash)
	assert.Equal(t, HashToken(b.RefreshToken), *old.ReplacedByTokenHash)

	var total int64
	require.NoError(t, env.db.Model(&RefreshToken{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), env.activeCount(t, alice.subject.ID))
}

func TestRotate_UserGone(t *testing.T) {
	env := newTestEnv(t)
	a := env.login(t)
	env.users.remove(alice.subject.Email)

	_, err := env.store.Rotate(context.Background(), a.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotate_Malformed(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.store.Rotate(context.Background(), "not-a-real-token", ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotate_ConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	a := env.login(t)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.store.Rotate(context.Background(), a.RefreshToken, ClientInfo{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		require.True(t, errors.Is(err, ErrInvalidToken), "erro inesperado: %v", err)
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, int64(1), env.activeCount(t, alice.subject.ID))
}

type recordingAlerter struct {
	mu    sync.Mutex
	users []uint
}

func (r *recordingAlerter) RefreshTokenReused(_ context.Context, userID uint, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

func TestRotate_ReuseRevokesLineageWhenEnabled(t *testing.T) {
	env := newTestEnv(t)
	env.store.RevokeFamilyOnReuse = true
	alerter := &recordingAlerter{}
	env.store.Alerter = alerter
	ctx := context.Background()

	a := env.login(t)
	b, err := env.store.Rotate(ctx, a.RefreshToken, ClientInfo{})
	require.NoError(t, err)
	c, err := env.store.Rotate(ctx, b.RefreshToken, ClientInfo{})
	require.NoError(t, err)
	other := env.login(t)

	_, err = env.store.Rotate(ctx, a.RefreshToken, ClientInfo{IP: "203.0.113.5"})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = env.store.Verify(ctx, c.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "descendente deve ter sido revogado")
	_, _, err = env.store.Verify(ctx, other.RefreshToken)
	assert.NoError(t, err, "outra linhagem do mesmo usuário não é afetada")
	assert.Equal(t, []uint{alice.subject.ID}, alerter.users)
}

func TestRotate_ReuseAlertsWithoutRevokingByDefault(t *testing.T) {
	env := newTestEnv(t)
	alerter := &recordingAlerter{}
	env.store.Alerter = alerter
	ctx := context.Background()

	a := env.login(t)
	b, err := env.store.Rotate(ctx, a.RefreshToken, ClientInfo{})
	require.NoError(t, err)

	_, err = env.store.Rotate(ctx, a.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.Equal(t, []uint{alice.subject.ID}, alerter.users)
	_, _, err = env.store.Verify(ctx, b.RefreshToken)
	assert.NoError(t, err, "sem RevokeFamilyOnReuse o descendente continua válido")
}
