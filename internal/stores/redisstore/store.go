// internal/stores/redisstore/store.go
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
)

// Store keeps each record as a Redis hash at "<prefix>:<id>". The set
// "<prefix>:schema" lists every field name ever written, populated or not.
type Store struct {
	client redis.Cmdable
	prefix string
	logger logger.Logger
}

func New(client redis.Cmdable, prefix string, log logger.Logger) *Store {
	if prefix == "" {
		prefix = "record"
	}
	return &Store{
		client: client,
		prefix: prefix,
		logger: log.WithFields(map[string]interface{}{"component": "redis-record-store"}),
	}
}

func (s *Store) key(id string) string {
	return s.prefix + ":" + id
}

func (s *Store) schemaKey() string {
	return s.prefix + ":schema"
}

// Get returns a fresh snapshot of the record.
func (s *Store) Get(ctx context.Context, id string) (model.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return model.Record{}, apperrors.NewRecordStoreFailedError("get", err)
	}
	if len(fields) == 0 {
		return model.Record{}, apperrors.NewRecordNotFoundError(id)
	}

	schema, err := s.client.SMembers(ctx, s.schemaKey()).Result()
	if err != nil {
		return model.Record{}, apperrors.NewRecordStoreFailedError("schema", err)
	}
	if len(schema) == 0 {
		schema = nil
	} else {
		sort.Strings(schema)
	}

	rec := model.Record{ID: id, Fields: make(map[string]any, len(fields)), Schema: schema}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	return rec, nil
}

// Update writes every field in one MULTI/EXEC transaction.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	values := make([]interface{}, 0, len(names)*2)
	members := make([]interface{}, 0, len(names))
	for _, name := range names {
		encoded, err := encodeValue(fields[name])
		if err != nil {
			return apperrors.NewInvalidInputError(fmt.Sprintf("field %s: %v", name, err))
		}
		values = append(values, name, encoded)
		members = append(members, name)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(id), values...)
		pipe.SAdd(ctx, s.schemaKey(), members...)
		return nil
	})
	if err != nil {
		return apperrors.NewRecordStoreFailedError("update", err)
	}

	s.logger.Debug("record updated", map[string]interface{}{
		"recordId": id,
		"fields":   names,
	})
	return nil
}

func encodeValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case time.Time:
		return val.UTC().Format(time.RFC3339), nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		if rv := reflect.ValueOf(val); rv.Kind() == reflect.String {
			return rv.String(), nil
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}
