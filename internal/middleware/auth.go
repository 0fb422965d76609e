package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"alice-srv/internal/models"
	"alice-srv/internal/store"
	"alice-srv/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// ContextKey 上下文键类型
type ContextKey string

// UserIDKey 用户ID上下文键
const UserIDKey ContextKey = "userID"

// MaxUserIDLength 用户ID最大长度
const MaxUserIDLength = 64

var errBadPassword = errors.New("密码错误")

// Authenticator 基于用户表的 Basic 认证，未知用户自动注册
type Authenticator struct {
	store   store.Store
	lockout *Lockout
	cost    int
	now     func() time.Time
}

// AuthOption 认证器选项
type AuthOption func(*Authenticator)

// WithHashCost 设置 bcrypt 计算强度
func WithHashCost(cost int) AuthOption {
	return func(a *Authenticator) { a.cost = cost }
}

// NewAuthenticator 创建认证器
func NewAuthenticator(st store.Store, lockout *Lockout, opts ...AuthOption) *Authenticator {
	a := &Authenticator{
		store:   st,
		lockout: lockout,
		cost:    bcrypt.DefaultCost,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BasicAuth Basic 认证中间件
func (a *Authenticator) BasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := utils.GetClientIP(r)
		if a.lockout != nil {
			if wait := a.lockout.Locked(ip); wait > 0 {
				tooManyRequests(w, wait)
				return
			}
		}

		userID, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Alice Server"`)
			utils.ErrorResponse(w, http.StatusUnauthorized, "需要认证", nil)
			return
		}
		if !validUserID(userID) {
			utils.ErrorResponse(w, http.StatusBadRequest, "无效的用户ID格式", nil)
			return
		}
		if password == "" {
			utils.ErrorResponse(w, http.StatusUnauthorized, "密码不能为空", nil)
			return
		}

		err := a.authenticate(r.Context(), userID, password, ip)
		if errors.Is(err, errBadPassword) {
			msg := "密码错误"
			if a.lockout != nil {
				if a.lockout.Fail(ip) > 0 {
					msg = "密码错误，该地址已被暂时锁定"
				} else {
					msg = fmt.Sprintf("密码错误，还可尝试 %d 次", a.lockout.Remaining(ip))
				}
			}
			utils.ErrorResponse(w, http.StatusUnauthorized, msg, nil)
			return
		}
		if err != nil {
			utils.ErrorResponse(w, http.StatusInternalServerError, "认证失败", err)
			return
		}
		if a.lockout != nil {
			a.lockout.Succeed(ip)
		}

		setLogUser(r, userID)
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate 校验密码，用户不存在时注册
func (a *Authenticator) authenticate(ctx context.Context, userID, password, ip string) error {
	var user *models.User
	err := a.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("查询用户失败: %w", err)
	}

	if user != nil {
		// 比较哈希较慢，放在事务外
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
			return errBadPassword
		}
		return a.store.InTx(ctx, func(tx store.Tx) error {
			return tx.TouchUser(ctx, userID, ip)
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return fmt.Errorf("生成密码哈希失败: %w", err)
	}
	now := a.now()
	err = a.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateUser(ctx, &models.User{
			UserID:    userID,
			Password:  string(hash),
			CreatedAt: now,
			UpdatedAt: now,
			CreateIP:  ip,
			UpdateIP:  ip,
		})
	})
	if errors.Is(err, store.ErrConflict) {
		// 并发注册，按已存在用户重新校验
		return a.authenticate(ctx, userID, password, ip)
	}
	return err
}

// ChangePassword 修改当前用户密码
func (a *Authenticator) ChangePassword(ctx context.Context, userID, password, ip string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return fmt.Errorf("生成密码哈希失败: %w", err)
	}
	return a.store.InTx(ctx, func(tx store.Tx) error {
		return tx.UpdateUserPassword(ctx, userID, string(hash), ip)
	})
}

func validUserID(id string) bool {
	if id == "" || utf8.RuneCountInString(id) > MaxUserIDLength {
		return false
	}
	return !strings.ContainsFunc(id, func(r rune) bool {
		return r <= ' ' || r == ':'
	})
}

// GetUserID 从上下文获取用户ID
func GetUserID(r *http.Request) string {
	if v, ok := r.Context().Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
