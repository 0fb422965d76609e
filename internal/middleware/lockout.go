package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"alice-srv/pkg/utils"
)

// failureWindow 失败记录的有效期，超过后不再计入封禁
const failureWindow = 24 * time.Hour

// Lockout 按 IP 记录认证失败，窗口内失败 limit 次后封禁一段时间
type Lockout struct {
	limit int
	ban   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*strikes

	done      chan struct{}
	closeOnce sync.Once
}

type strikes struct {
	failures []time.Time
	until    time.Time
}

// NewLockout 创建封禁表并在后台定期清理过期记录，用完需 Close
func NewLockout(limit int, ban time.Duration) *Lockout {
	l := &Lockout{
		limit:   limit,
		ban:     ban,
		now:     time.Now,
		clients: make(map[string]*strikes),
		done:    make(chan struct{}),
	}
	go l.run(time.Minute)
	return l
}

func (l *Lockout) run(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep 删除封禁已结束且没有有效失败记录的 IP
func (l *Lockout) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for ip, s := range l.clients {
		s.expire(now)
		if len(s.failures) == 0 && !now.Before(s.until) {
			delete(l.clients, ip)
		}
	}
}

// Close 停止后台清理
func (l *Lockout) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// expire 丢弃窗口之外的失败记录
func (s *strikes) expire(now time.Time) {
	cut := 0
	for cut < len(s.failures) && now.Sub(s.failures[cut]) > failureWindow {
		cut++
	}
	s.failures = s.failures[cut:]
}

// Fail 记录一次认证失败，触发封禁时返回封禁时长
func (l *Lockout) Fail(ip string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	s, ok := l.clients[ip]
	if !ok {
		s = &strikes{}
		l.clients[ip] = s
	}
	s.expire(now)
	s.failures = append(s.failures, now)
	if len(s.failures) < l.limit {
		return 0
	}
	s.failures = nil
	s.until = now.Add(l.ban)
	return l.ban
}

// Succeed 认证成功后清除该 IP 的记录
func (l *Lockout) Succeed(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, ip)
}

// Locked 返回剩余封禁时长，未封禁时为 0
func (l *Lockout) Locked(ip string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.clients[ip]
	if !ok {
		return 0
	}
	return max(s.until.Sub(l.now()), 0)
}

// Remaining 返回封禁前还能失败的次数
func (l *Lockout) Remaining(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.clients[ip]
	if !ok {
		return l.limit
	}
	s.expire(l.now())
	return max(l.limit-len(s.failures), 0)
}

// tooManyRequests 写入 429 和 Retry-After 秒数
func tooManyRequests(w http.ResponseWriter, wait time.Duration) {
	secs := int64((wait + time.Second - 1) / time.Second)
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	utils.ErrorResponse(w, http.StatusTooManyRequests,
		"请求过于频繁，请稍后再试 ("+wait.Round(time.Second).String()+")", nil)
}
