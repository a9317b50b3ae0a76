package snapshot

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sqids/sqids-go"
)

var ErrSessionNotFound = errors.New("snapshot session not found")

// Session 宿主页面上的一个 widget 实例及其快照
type Session struct {
	Code    string
	Widget  string
	Store   *Store
	Created time.Time
}

// Sessions 有上限的会话集合，按 LRU 淘汰；onEvict 供调用方卸载渲染挂载点
type Sessions struct {
	cache *lru.Cache[string, *Session]
	codes *sqids.Sqids
	seq   atomic.Uint64
}

func NewSessions(max int, onEvict func(*Session)) (*Sessions, error) {
	if max <= 0 {
		max = 1000
	}
	cache, err := lru.NewWithEvict[string, *Session](max, func(_ string, s *Session) {
		if onEvict != nil {
			onEvict(s)
		}
	})
	if err != nil {
		return nil, err
	}
	codes, err := sqids.New(sqids.Options{
		Alphabet:  "Xq7Lm2ZbR9tKc4WnV8hGyP3sJ6dFuA5eTkQrB1fHwCxN0jDpMgYEvSaUz",
		MinLength: 6,
	})
	if err != nil {
		return nil, fmt.Errorf("sqids init: %w", err)
	}
	return &Sessions{cache: cache, codes: codes}, nil
}

// Create data 可以为 nil
func (s *Sessions) Create(widget string, data []byte) (*Session, error) {
	code, err := s.codes.Encode([]uint64{s.seq.Add(1)})
	if err != nil {
		return nil, fmt.Errorf("encode session code: %w", err)
	}
	sess := &Session{
		Code:    code,
		Widget:  widget,
		Store:   NewStore(data),
		Created: time.Now(),
	}
	s.cache.Add(code, sess)
	return sess, nil
}

func (s *Sessions) Get(code string) (*Session, error) {
	sess, ok := s.cache.Get(code)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Alive 不影响淘汰顺序
func (s *Sessions) Alive(code string) bool {
	return s.cache.Contains(code)
}

func (s *Sessions) Remove(code string) {
	s.cache.Remove(code)
}

func (s *Sessions) Len() int {
	return s.cache.Len()
}
