package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talatkuyuk/authtokens/token"
)

const (
	statusNotFound int64 = 0
	statusExpired  int64 = 1
	statusReplayed int64 = 2
	statusOK       int64 = 3
	statusCorrupt  int64 = 4
)

// reapGrace keeps record keys alive past their logical expiry. A token
// presented inside the JWT verification leeway must still resolve to a stored
// record so the scripts can answer "expired" rather than "not found"; a
// missing record is treated as reuse by the engine. token.NewManager caps
// leeway at two minutes, so this grace covers every accepted configuration.
const reapGrace = 2 * time.Minute

// luaHelpers parse the fixed-offset record header described in encoder.go.
const luaHelpers = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local function parse_record(data)
  local version = string.byte(data, 1)
  if not version or version ~= 1 then
    return nil
  end
  local kind = string.byte(data, 2)
  local blacklisted = string.byte(data, 3)
  local expires_at = read_be64(data, 4)
  if not expires_at then
    return nil
  end
  local flen = string.byte(data, 20)
  if not flen or #data < 20 + flen + 1 then
    return nil
  end
  local family = string.sub(data, 21, 20 + flen)
  local sidx = 21 + flen
  local slen = string.byte(data, sidx)
  if not slen or slen == 0 or #data < sidx + slen then
    return nil
  end
  local subject = string.sub(data, sidx + 1, sidx + slen)
  return {
    kind = kind,
    blacklisted = blacklisted,
    expires_at = expires_at,
    family = family,
    subject = subject
  }
end

local function drop_indexes(prefix, jti, rec)
  if #rec.family > 0 then
    redis.call("SREM", prefix .. ":f:" .. rec.family, jti)
  end
  redis.call("SREM", prefix .. ":u:" .. rec.subject, jti)
  redis.call("SREM", prefix .. ":k:" .. rec.subject .. ":" .. rec.kind, jti)
end
`

const saveScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local px = tonumber(ARGV[2])
redis.call("SET", KEYS[1], ARGV[1], "PX", px)
local function bump(key)
  if redis.call("PTTL", key) < px then
    redis.call("PEXPIRE", key, px)
  end
end
if ARGV[3] == "1" then
  redis.call("SADD", KEYS[2], ARGV[4])
  bump(KEYS[2])
end
redis.call("SADD", KEYS[3], ARGV[4])
bump(KEYS[3])
redis.call("SADD", KEYS[4], ARGV[4])
bump(KEYS[4])
return 1
`

const consumeScript = luaHelpers + `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
local rec = parse_record(data)
if not rec then
  return {4}
end
local now = tonumber(ARGV[1])
if rec.expires_at <= now then
  return {1}
end
if rec.blacklisted == 1 then
  return {2}
end
local marked = string.sub(data, 1, 2) .. string.char(1) .. string.sub(data, 4)
local ttl = redis.call("PTTL", KEYS[1])
if ttl and ttl > 0 then
  redis.call("SET", KEYS[1], marked, "PX", ttl)
else
  redis.call("SET", KEYS[1], marked)
end
return {3, data}
`

const redeemScript = luaHelpers + `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
local rec = parse_record(data)
if not rec then
  return {4}
end
local now = tonumber(ARGV[1])
if rec.expires_at <= now then
  return {1}
end
redis.call("DEL", KEYS[1])
drop_indexes(ARGV[2], ARGV[3], rec)
return {3, data}
`

const removeSetScript = luaHelpers + `
local members = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, jti in ipairs(members) do
  local rkey = ARGV[1] .. ":t:" .. jti
  local data = redis.call("GET", rkey)
  if data then
    local rec = parse_record(data)
    redis.call("DEL", rkey)
    if rec then
      drop_indexes(ARGV[1], jti, rec)
      removed = removed + 1
    end
  end
end
redis.call("DEL", KEYS[1])
return removed
`

var (
	saveLua      = redis.NewScript(saveScript)
	consumeLua   = redis.NewScript(consumeScript)
	redeemLua    = redis.NewScript(redeemScript)
	removeSetLua = redis.NewScript(removeSetScript)
)

// RedisStore implements [Store] on a Redis backend. All conditional
// mutations run as server-side Lua scripts, so the atomic-consume property
// holds across any number of engine instances sharing the same Redis.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore constructs a store bound to the given client. The prefix
// namespaces every key; it defaults to "atk".
func NewRedisStore(redisClient redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "atk"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) recordKey(jti string) string {
	return s.prefix + ":t:" + jti
}

func (s *RedisStore) familyKey(family string) string {
	return s.prefix + ":f:" + family
}

func (s *RedisStore) subjectKey(subject string) string {
	return s.prefix + ":u:" + subject
}

func (s *RedisStore) kindKey(subject string, kind token.Kind) string {
	return s.prefix + ":k:" + subject + ":" + strconv.Itoa(int(kind))
}

// Save persists a new record. The record key carries a TTL of ttl plus a
// fixed reap grace, so Redis itself reaps the key, but only after the window
// in which an expired token could still pass JWT verification. Index sets are
// extended to at least the same lifetime.
func (s *RedisStore) Save(ctx context.Context, rec *Record, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("invalid ttl")
	}
	encoded, err := Encode(rec)
	if err != nil {
		return err
	}

	hasFamily := "0"
	if rec.Family != "" {
		hasFamily = "1"
	}

	keys := []string{
		s.recordKey(rec.JTI),
		s.familyKey(rec.Family),
		s.subjectKey(rec.Subject),
		s.kindKey(rec.Subject, rec.Kind),
	}
	res, err := saveLua.Run(ctx, s.redis, keys, encoded, (ttl + reapGrace).Milliseconds(), hasFamily, rec.JTI).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrDuplicateJTI
	}
	return nil
}

// FindByJTI returns the stored record, including blacklisted ones. Expired
// records report [ErrNotFound].
func (s *RedisStore) FindByJTI(ctx context.Context, jti string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.recordKey(jti)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rec, err := Decode(jti, data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() >= rec.ExpiresAt {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Consume is the atomic blacklist step of refresh rotation. The returned
// record reflects the state before consumption.
func (s *RedisStore) Consume(ctx context.Context, jti string) (*Record, error) {
	return s.runConditional(ctx, consumeLua, jti)
}

// Redeem is the atomic delete step of action-token redemption.
func (s *RedisStore) Redeem(ctx context.Context, jti string) (*Record, error) {
	return s.runConditional(ctx, redeemLua, jti)
}

func (s *RedisStore) runConditional(ctx context.Context, script *redis.Script, jti string) (*Record, error) {
	res, err := script.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(jti)},
		time.Now().Unix(),
		s.prefix,
		jti,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: empty script reply", ErrUnavailable)
	}

	status, ok := res[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected script reply %T", ErrUnavailable, res[0])
	}

	switch status {
	case statusNotFound:
		return nil, ErrNotFound
	case statusExpired:
		return nil, ErrExpired
	case statusReplayed:
		return nil, ErrReplayed
	case statusCorrupt:
		return nil, ErrCorruptRecord
	case statusOK:
		if len(res) < 2 {
			return nil, ErrCorruptRecord
		}
		blob, ok := res[1].(string)
		if !ok {
			return nil, ErrCorruptRecord
		}
		return Decode(jti, []byte(blob))
	default:
		return nil, fmt.Errorf("%w: unknown script status %d", ErrUnavailable, status)
	}
}

// RemoveFamily deletes every record sharing the family, blacklisted or not.
func (s *RedisStore) RemoveFamily(ctx context.Context, family string) error {
	if family == "" {
		return nil
	}
	return s.removeSet(ctx, s.familyKey(family))
}

// RemoveSubject deletes every record of the subject across all families and
// kinds.
func (s *RedisStore) RemoveSubject(ctx context.Context, subject string) error {
	return s.removeSet(ctx, s.subjectKey(subject))
}

// RemoveKind deletes every record of the subject with the given kind.
func (s *RedisStore) RemoveKind(ctx context.Context, subject string, kind token.Kind) error {
	return s.removeSet(ctx, s.kindKey(subject, kind))
}

func (s *RedisStore) removeSet(ctx context.Context, setKey string) error {
	if err := removeSetLua.Run(ctx, s.redis, []string{setKey}, s.prefix).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
