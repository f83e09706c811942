package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession means the user has no live session or the sid does not match.
var ErrNoSession = errors.New("session not found")

// Session is the hash stored at user:session:<id>.
type Session struct {
	UserID    string
	SessionID string
	Email     string
	Name      string
	Role      string
}

// SessionStore keeps one active session per user.
type SessionStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewSessionStore(client redis.Cmdable, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func SessionKey(userID string) string {
	return "user:session:" + userID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Save writes the session, replacing any previous sid.
func (s *SessionStore) Save(ctx context.Context, sess Session) error {
	key := SessionKey(sess.UserID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"user_id":    sess.UserID,
		"sid":        sess.SessionID,
		"email":      sess.Email,
		"name":       sess.Name,
		"role":       sess.Role,
		"logged_in":  true,
		"created_at": nowRFC3339(),
	})
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns the session when its sid matches.
func (s *SessionStore) Get(ctx context.Context, userID, sid string) (*Session, error) {
	data, err := s.client.HGetAll(ctx, SessionKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || data["sid"] == "" || data["sid"] != sid {
		return nil, ErrNoSession
	}
	return &Session{
		UserID:    data["user_id"],
		SessionID: data["sid"],
		Email:     data["email"],
		Name:      data["name"],
		Role:      data["role"],
	}, nil
}

// rotateScript swaps the sid only while it still equals ARGV[1].
var rotateScript = redis.NewScript(`
local sid = redis.call('HGET', KEYS[1], 'sid')
if not sid or sid == '' or sid ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'sid', ARGV[2], 'updated_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// Rotate swaps oldSID for newSID and extends the TTL. Of two concurrent
// rotations of the same sid only one succeeds.
func (s *SessionStore) Rotate(ctx context.Context, userID, oldSID, newSID string) error {
	if oldSID == "" {
		return ErrNoSession
	}
	ok, err := rotateScript.Run(ctx, s.client, []string{SessionKey(userID)},
		oldSID, newSID, nowRFC3339(), s.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrNoSession
	}
	return nil
}

// Update overwrites fields of an existing session and keeps its TTL.
func (s *SessionStore) Update(ctx context.Context, userID string, fields map[string]any) error {
	key := SessionKey(userID)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil || n == 0 {
		return err
	}
	fields["updated_at"] = nowRFC3339()
	return s.client.HSet(ctx, key, fields).Err()
}

func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, SessionKey(userID)).Err()
}

// TokenStore holds single-use email tokens.
type TokenStore struct {
	client redis.Cmdable
}

func NewTokenStore(client redis.Cmdable) *TokenStore {
	return &TokenStore{client: client}
}

func tokenKey(kind, token string) string {
	return "auth:" + kind + ":token:" + token
}

func (t *TokenStore) Put(ctx context.Context, kind, token, userID string, ttl time.Duration) error {
	return t.client.Set(ctx, tokenKey(kind, token), userID, ttl).Err()
}

// Take returns the user id for token and deletes it. ErrCacheMiss means unknown or expired.
func (t *TokenStore) Take(ctx context.Context, kind, token string) (string, error) {
	uid, err := t.client.GetDel(ctx, tokenKey(kind, token)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && uid == "") {
		return "", ErrCacheMiss
	}
	return uid, err
}
