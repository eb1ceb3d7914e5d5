package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"novel-translate-service/internal/entity"
)

const (
	DefaultTTL          = 7 * 24 * time.Hour
	DefaultHistoryLimit = 20
)

// cancelScript only touches a record that still exists, so an expired job is
// never resurrected as a bare {status: canceled} hash without TTL.
var cancelScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1])
return 1
`)

// progressScript applies field/value pairs. A canceled status is final.
var progressScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local current = redis.call('HGET', KEYS[1], 'status')
local written = 0
for i = 1, #ARGV, 2 do
  local field, value = ARGV[i], ARGV[i + 1]
  if not (field == 'status' and current == 'canceled') then
    redis.call('HSET', KEYS[1], field, value)
    written = written + 1
  end
end
return written
`)

// deleteScript removes task:{id} only if it was in the caller's index.
var deleteScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
  redis.call('DEL', KEYS[2])
  return 1
end
return 0
`)

type Options struct {
	TaskPrefix      string
	UserIndexPrefix string
	TTL             time.Duration
}

// JobStore keeps task:{id} hashes and the user:tasks:{user} sorted index.
type JobStore struct {
	rdb  *redis.Client
	opts Options
	now  func() time.Time
}

func NewJobStore(rdb *redis.Client, opts Options) *JobStore {
	if opts.TaskPrefix == "" {
		opts.TaskPrefix = "task:"
	}
	if opts.UserIndexPrefix == "" {
		opts.UserIndexPrefix = "user:tasks:"
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &JobStore{rdb: rdb, opts: opts, now: time.Now}
}

func (s *JobStore) taskKey(id string) string      { return s.opts.TaskPrefix + id }
func (s *JobStore) indexKey(userID string) string { return s.opts.UserIndexPrefix + userID }

// Create writes the starting record, its TTL and the index entry in one pipeline.
// Index members older than the TTL are pruned on the way.
func (s *JobStore) Create(ctx context.Context, userID, jobID string, p entity.WorkflowPayload) error {
	urls, err := json.Marshal(p.URLs)
	if err != nil {
		return fmt.Errorf("marshal urls: %w", err)
	}

	now := s.now()
	nowMs := now.UnixMilli()
	cutoff := now.Add(-s.opts.TTL).UnixMilli()

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, s.indexKey(userID), redis.Z{Score: float64(nowMs), Member: jobID})
	pipe.ZRemRangeByScore(ctx, s.indexKey(userID), "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.HSet(ctx, s.taskKey(jobID), map[string]any{
		"status":       string(entity.StatusStarting),
		"progress":     0,
		"current":      0,
		"total":        len(p.URLs),
		"urls":         string(urls),
		"created_at":   nowMs,
		"provider":     p.Provider,
		"model_id":     p.ModelID,
		"api_key_name": p.APIKeyName,
	})
	pipe.Expire(ctx, s.taskKey(jobID), s.opts.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create job %s: %w", jobID, err)
	}
	return nil
}

// MarkCanceled forces status=canceled. Calling it twice is harmless.
func (s *JobStore) MarkCanceled(ctx context.Context, jobID string) error {
	n, err := cancelScript.Run(ctx, s.rdb, []string{s.taskKey(jobID)}, string(entity.StatusCanceled)).Int()
	if err != nil {
		return fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// ApplyProgress records a worker update. It never overrides a canceled status
// and never recreates a record that expired or was deleted.
func (s *JobStore) ApplyProgress(ctx context.Context, jobID string, u entity.ProgressUpdate) error {
	args := make([]any, 0, 8)
	if u.Status != nil {
		args = append(args, "status", string(*u.Status))
	}
	if u.Progress != nil {
		args = append(args, "progress", strconv.FormatFloat(*u.Progress, 'f', -1, 64))
	}
	if u.Current != nil {
		args = append(args, "current", strconv.Itoa(*u.Current))
	}
	if u.ErrorMessage != nil {
		args = append(args, "error_message", *u.ErrorMessage)
	}

	keys := []string{s.taskKey(jobID)}
	if len(args) == 0 {
		n, err := s.rdb.Exists(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("progress job %s: %w", jobID, err)
		}
		if n == 0 {
			return entity.ErrNotFound
		}
		return nil
	}

	n, err := progressScript.Run(ctx, s.rdb, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("progress job %s: %w", jobID, err)
	}
	if n < 0 {
		return entity.ErrNotFound
	}
	return nil
}

// Delete drops the index entry and, when the user owned it, the record.
// Deleting an unknown id is a no-op.
func (s *JobStore) Delete(ctx context.Context, userID, jobID string) error {
	keys := []string{s.indexKey(userID), s.taskKey(jobID)}
	if err := deleteScript.Run(ctx, s.rdb, keys, jobID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	return nil
}

// Owns reports whether jobID is in the user's index.
func (s *JobStore) Owns(ctx context.Context, userID, jobID string) (bool, error) {
	err := s.rdb.ZScore(ctx, s.indexKey(userID), jobID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("owner of job %s: %w", jobID, err)
	}
	return true, nil
}

// Get reads one record.
func (s *JobStore) Get(ctx context.Context, jobID string) (*entity.Job, error) {
	fields, err := s.rdb.HGetAll(ctx, s.taskKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, entity.ErrNotFound
	}
	j := normalize(jobID, fields)
	return &j, nil
}

// ListRecent returns up to limit jobs, newest first. Ids whose record is
// gone are skipped.
func (s *JobStore) ListRecent(ctx context.Context, userID string, limit int) ([]entity.Job, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	ids, err := s.rdb.ZRevRange(ctx, s.indexKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list job ids: %w", err)
	}
	if len(ids) == 0 {
		return []entity.Job{}, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.taskKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read jobs: %w", err)
	}

	out := make([]entity.Job, 0, len(ids))
	for i, id := range ids {
		fields, err := cmds[i].Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		out = append(out, normalize(id, fields))
	}
	return out, nil
}

func normalize(id string, f map[string]string) entity.Job {
	j := entity.Job{
		ID:           id,
		Status:       entity.JobStatus(f["status"]),
		Progress:     parseFloat(f["progress"]),
		Current:      int(parseFloat(f["current"])),
		Total:        int(parseFloat(f["total"])),
		URLs:         []string{},
		ErrorMessage: optional(f["error_message"]),
		Provider:     optional(f["provider"]),
		ModelID:      optional(f["model_id"]),
		APIKeyName:   optional(f["api_key_name"]),
	}
	if raw := f["urls"]; raw != "" {
		var urls []string
		if err := json.Unmarshal([]byte(raw), &urls); err == nil && urls != nil {
			j.URLs = urls
		}
	}
	if ms, err := strconv.ParseInt(f["created_at"], 10, 64); err == nil {
		j.CreatedAt = &ms
	}
	return j
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
