package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vovakirdan/wirerelay/internal/store"
)

const (
	defaultPrefix = "wirerelay:"
	scanBatch     = 100
)

// Options configures the Redis store.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key; defaults to "wirerelay:".
	Prefix string
}

// RedisStore implements store.Store on Redis hashes.
// Messages are indexed by a sorted set scored with their creation time in microseconds.
type RedisStore struct {
	client *goredis.Client
	prefix string
}

var _ store.Store = (*RedisStore)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) userSeqKey() string { return s.prefix + "user:seq" }
func (s *RedisStore) userNameKey(name string) string { return s.prefix + "user:name:" + name }
func (s *RedisStore) userIDKey(id int64) string { return s.prefix + "user:id:" + strconv.FormatInt(id, 10) }
func (s *RedisStore) messageKey(id string) string { return s.prefix + "msg:" + id }
func (s *RedisStore) timelineKey() string { return s.prefix + "timeline" }

// ==== UserStore implementation ====

// CreateUser claims the username hash with HSETNX and fills it in.
func (s *RedisStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	id, err := s.client.Incr(ctx, s.userSeqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("next user id: %w", err)
	}

	claimed, err := s.client.HSetNX(ctx, s.userNameKey(username), "id", id).Result()
	if err != nil {
		return nil, fmt.Errorf("claim username: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("insert user %q: %w", username, store.ErrDuplicate)
	}

	now := time.Now().UTC()
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.userNameKey(username),
			"username", username,
			"password_hash", passwordHash,
			"created_at", now.UnixMicro(),
		)
		pipe.Set(ctx, s.userIDKey(id), username, 0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &store.User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// GetUserByID resolves the id to a username, then loads the hash.
func (s *RedisStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	username, err := s.client.Get(ctx, s.userIDKey(id)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return s.GetUserByUsername(ctx, username)
}

// GetUserByUsername loads the user hash.
func (s *RedisStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	fields, err := s.client.HGetAll(ctx, s.userNameKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if len(fields) == 0 || fields["password_hash"] == "" {
		return nil, fmt.Errorf("user: %w", store.ErrNotFound)
	}

	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	return &store.User{
		ID:           id,
		Username:     fields["username"],
		PasswordHash: fields["password_hash"],
		CreatedAt:    parseMicros(fields["created_at"]),
	}, nil
}

// ==== MessageStore implementation ====

// CreateMessage stores the message hash and adds it to the timeline.
func (s *RedisStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		return errors.New("insert message: empty id")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()

	key := s.messageKey(msg.ID)
	claimed, err := s.client.HSetNX(ctx, key, "id", msg.ID).Result()
	if err != nil {
		return fmt.Errorf("claim message id: %w", err)
	}
	if !claimed {
		return fmt.Errorf("insert message %s: %w", msg.ID, store.ErrDuplicate)
	}

	micros := msg.CreatedAt.UnixMicro()
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"text", msg.Text,
			"author", msg.Author,
			"receiver", msg.Receiver,
			"seen", boolField(msg.Seen),
			"created_at", micros,
		)
		pipe.ZAdd(ctx, s.timelineKey(), goredis.Z{Score: float64(micros), Member: msg.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// FindMessageByID loads one message hash.
func (s *RedisStore) FindMessageByID(ctx context.Context, id string) (*store.Message, error) {
	fields, err := s.client.HGetAll(ctx, s.messageKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("message %s: %w", id, store.ErrNotFound)
	}
	return messageFromFields(fields), nil
}

// SaveMessage updates the mutable fields of an existing message.
func (s *RedisStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	key := s.messageKey(msg.ID)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check message: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %s: %w", msg.ID, store.ErrNotFound)
	}
	if err := s.client.HSet(ctx, key, "text", msg.Text, "seen", boolField(msg.Seen)).Err(); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// ListMessages walks the timeline newest first, filtering by visibility, until the page fills.
func (s *RedisStore) ListMessages(ctx context.Context, q store.HistoryQuery) ([]*store.Message, error) {
	limit := store.NormalizeLimit(q.Limit)

	maxScore := "+inf"
	if !q.Before.IsZero() {
		maxScore = "(" + strconv.FormatInt(q.Before.UTC().UnixMicro(), 10)
	}

	var messages []*store.Message
	for offset := int64(0); len(messages) < limit; offset += scanBatch {
		ids, err := s.client.ZRevRangeByScore(ctx, s.timelineKey(), &goredis.ZRangeBy{
			Min:    "-inf",
			Max:    maxScore,
			Offset: offset,
			Count:  scanBatch,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("query timeline: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			msg, err := s.FindMessageByID(ctx, id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if msg.Directed() && msg.Receiver != q.Viewer && msg.Author != q.Viewer {
				continue
			}
			messages = append(messages, msg)
			if len(messages) == limit {
				break
			}
		}
	}

	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}
	return messages, nil
}

func messageFromFields(fields map[string]string) *store.Message {
	return &store.Message{
		ID:        fields["id"],
		Text:      fields["text"],
		Author:    fields["author"],
		Receiver:  fields["receiver"],
		Seen:      fields["seen"] == "1",
		CreatedAt: parseMicros(fields["created_at"]),
	}
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseMicros(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMicro(n).UTC()
}
