package tts

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/iabetor/speak/internal/database"
	"github.com/iabetor/speak/internal/logger"
)

// CachedEngine 缓存引擎的合成结果。
// 音频文件存放在缓存目录，索引记录在 tts_cache 表，
// 总大小超过上限时按最近使用时间淘汰。
type CachedEngine struct {
	inner    Engine
	db       *database.DB
	dir      string
	maxBytes int64
	voice    string
	language string
	now      func() time.Time
}

// NewCachedEngine 创建缓存引擎。db 需要已完成迁移。
func NewCachedEngine(inner Engine, db *database.DB, dir string, maxSizeMB int) (*CachedEngine, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}
	return &CachedEngine{
		inner:    inner,
		db:       db,
		dir:      dir,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		now:      time.Now,
	}, nil
}

func (c *CachedEngine) Name() string { return c.inner.Name() }

func (c *CachedEngine) SelectVoice(voice string) error {
	if err := c.inner.SelectVoice(voice); err != nil {
		return err
	}
	c.voice = voice
	return nil
}

func (c *CachedEngine) SetLanguage(language string) {
	c.inner.SetLanguage(language)
	c.language = language
}

// Synthesize 命中缓存时直接返回文件内容，否则调用底层引擎并写入缓存。
// 缓存读写失败只记录日志，不影响合成。
func (c *CachedEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	key := c.key(text)

	if data, ok := c.lookup(ctx, key); ok {
		logger.Debugf("[tts] 缓存命中: %s", key[:12])
		return data, nil
	}

	data, err := c.inner.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.store(ctx, key, data); err != nil {
		logger.Warnf("[tts] 写入缓存失败: %v", err)
	} else if err := c.evict(ctx); err != nil {
		logger.Warnf("[tts] 缓存淘汰失败: %v", err)
	}
	return data, nil
}

// Close 释放底层引擎。
func (c *CachedEngine) Close() error {
	if closer, ok := c.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *CachedEngine) key(text string) string {
	h := sha256.New()
	for _, part := range []string{c.inner.Name(), c.voice, c.language, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEngine) lookup(ctx context.Context, key string) ([]byte, bool) {
	var file string
	err := c.db.QueryRowContext(ctx, `SELECT file FROM tts_cache WHERE cache_key = ?`, key).Scan(&file)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warnf("[tts] 查询缓存失败: %v", err)
		}
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(c.dir, file))
	if err != nil {
		// 文件被外部删除，清掉失效索引
		logger.Debugf("[tts] 缓存文件丢失: %s", file)
		_, _ = c.db.ExecContext(ctx, `DELETE FROM tts_cache WHERE cache_key = ?`, key)
		return nil, false
	}

	_, err = c.db.ExecContext(ctx,
		`UPDATE tts_cache SET hits = hits + 1, last_used = ? WHERE cache_key = ?`, c.now().UnixNano(), key)
	if err != nil {
		logger.Warnf("[tts] 更新缓存使用时间失败: %v", err)
	}
	return data, true
}

func (c *CachedEngine) store(ctx context.Context, key string, data []byte) error {
	file := key + ".bin"
	if err := os.WriteFile(filepath.Join(c.dir, file), data, 0644); err != nil {
		return err
	}
	now := c.now().UnixNano()
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tts_cache (cache_key, engine, voice, language, file, size, created_at, last_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key, c.inner.Name(), c.voice, c.language, file, len(data), now, now)
	return err
}

// evict 删除最久未使用的条目，直到总大小不超过上限。
func (c *CachedEngine) evict(ctx context.Context) error {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM tts_cache`).Scan(&total); err != nil {
		return err
	}

	for total > c.maxBytes {
		var key, file string
		var size int64
		err := c.db.QueryRowContext(ctx,
			`SELECT cache_key, file, size FROM tts_cache ORDER BY last_used ASC LIMIT 1`).Scan(&key, &file, &size)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		if err := os.Remove(filepath.Join(c.dir, file)); err != nil && !os.IsNotExist(err) {
			logger.Warnf("[tts] 删除缓存文件失败: %v", err)
		}
		if _, err := c.db.ExecContext(ctx, `DELETE FROM tts_cache WHERE cache_key = ?`, key); err != nil {
			return err
		}
		total -= size
		logger.Debugf("[tts] 淘汰缓存: %s (%d 字节)", key[:12], size)
	}
	return nil
}
