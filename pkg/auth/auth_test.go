package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

type fakeAuth struct {
	keyLogins     atomic.Int32
	defaultLogins atomic.Int32
	token         func() string
	err           error
	delay         time.Duration
}

func (f *fakeAuth) LoginWithKey(_ context.Context, key string) (*model.LoginResponse, error) {
	f.keyLogins.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return nil, f.err
	}
	return &model.LoginResponse{Account: model.Account{ID: "acc-" + key}, AccessToken: f.token()}, nil
}

func (f *fakeAuth) SignupDefault(context.Context) (*model.LoginResponse, error) {
	f.defaultLogins.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &model.LoginResponse{Account: model.Account{ID: "anon"}, AccessToken: f.token()}, nil
}

func TestRefreshLogsInOnceWhileValid(t *testing.T) {
	api := &fakeAuth{}
	api.token = func() string { return signed(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}) }
	s := NewSession(api, "k1")

	assert.True(t, s.Expired())
	tok, err := s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, "acc-k1", s.AccountID())

	_, err = s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.keyLogins.Load())
	assert.False(t, s.Expired())
}

func TestExpiredTokenTriggersLogin(t *testing.T) {
	api := &fakeAuth{}
	api.token = func() string { return signed(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}) }
	s := NewSession(api, "k1")
	require.NoError(t, s.Refresh(context.Background()))

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.True(t, s.Expired())
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, int32(2), api.keyLogins.Load())
}

func TestTokenWithoutExpiryIsExpired(t *testing.T) {
	for name, raw := range map[string]func() string{
		"no exp":   func() string { return signed(t, jwt.MapClaims{"sub": "x"}) },
		"not jwt":  func() string { return "opaque-token" },
		"past exp": func() string { return signed(t, jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()}) },
	} {
		t.Run(name, func(t *testing.T) {
			api := &fakeAuth{token: raw}
			s := NewSession(api, "k")
			require.NoError(t, s.Refresh(context.Background()))
			assert.True(t, s.Expired())
		})
	}
}

func TestEmptyKeyUsesDefaultSignup(t *testing.T) {
	api := &fakeAuth{}
	api.token = func() string { return signed(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}) }
	s := NewSession(api, "")
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, int32(1), api.defaultLogins.Load())
	assert.Zero(t, api.keyLogins.Load())
	assert.Equal(t, "anon", s.AccountID())
}

func TestConcurrentRefreshSharesOneLogin(t *testing.T) {
	api := &fakeAuth{delay: 20 * time.Millisecond}
	api.token = func() string { return signed(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}) }
	s := NewSession(api, "k")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Refresh(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), api.keyLogins.Load())
}

func TestLoginFailure(t *testing.T) {
	api := &fakeAuth{err: errors.New("401")}
	s := NewSession(api, "k")
	_, err := s.AccessToken(context.Background())
	require.ErrorIs(t, err, errs.ErrUnauthenticated)
	stage, _ := errs.StageOf(err)
	assert.Equal(t, errs.StageAuth, stage)
}

func TestInvalidateAndLogin(t *testing.T) {
	api := &fakeAuth{}
	api.token = func() string { return signed(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}) }
	s := NewSession(api, "k")
	require.NoError(t, s.Refresh(context.Background()))
	s.Invalidate()
	assert.True(t, s.Expired())
	require.NoError(t, s.Login(context.Background()))
	assert.Equal(t, int32(2), api.keyLogins.Load())
}

func TestTokenSource(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	api := &fakeAuth{}
	api.token = func() string { return signed(t, jwt.MapClaims{"exp": exp.Unix()}) }
	tok, err := NewSession(api, "k").TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, tok.Valid())
	assert.True(t, exp.Equal(tok.Expiry))
}

type fakeRegistrar struct {
	logins  int
	keyReq  model.APIKeyRequest
	bearer  string
	signErr error
}

func (f *fakeRegistrar) SignupWithPassword(_ context.Context, name, _ string) (*model.Account, error) {
	if f.signErr != nil {
		return nil, f.signErr
	}
	return &model.Account{ID: "acc-1", Name: name}, nil
}

func (f *fakeRegistrar) LoginWithPassword(_ context.Context, accountID, _ string) (*model.LoginResponse, error) {
	f.logins++
	return &model.LoginResponse{Account: model.Account{ID: accountID}, AccessToken: []string{"", "first", "second"}[f.logins]}, nil
}

func (f *fakeRegistrar) GenerateAPIKey(_ context.Context, token string, req model.APIKeyRequest) (string, error) {
	f.bearer = token
	f.keyReq = req
	return "key-123", nil
}

func TestSignup(t *testing.T) {
	r := &fakeRegistrar{}
	res, err := Signup(context.Background(), r, "ada", "pw")
	require.NoError(t, err)
	assert.Equal(t, "key-123", res.APIKey)
	assert.Equal(t, "ada", res.Account.Name)
	assert.Equal(t, 2, r.logins)
	assert.Equal(t, "first", r.bearer)
	assert.Equal(t, model.APIKeyRequest{AccountID: "acc-1", SecondToken: "second"}, r.keyReq)
}

func TestSignupErrors(t *testing.T) {
	_, err := Signup(context.Background(), &fakeRegistrar{}, "", "pw")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = Signup(context.Background(), &fakeRegistrar{signErr: errors.New("taken")}, "ada", "pw")
	require.Error(t, err)
	stage, _ := errs.StageOf(err)
	assert.Equal(t, errs.StageAuth, stage)
}
