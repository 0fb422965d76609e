// Package handler 提供 HTTP 请求处理器
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"alice-srv/internal/game"
	"alice-srv/internal/middleware"
	"alice-srv/pkg/utils"
)

// MaxBodySize 请求体上限
const MaxBodySize = 1 << 20

// Handler 游戏接口处理器
type Handler struct {
	Game *game.Service
	Auth *middleware.Authenticator
}

// New 创建处理器
func New(svc *game.Service, auth *middleware.Authenticator) *Handler {
	return &Handler{Game: svc, Auth: auth}
}

// writeError 将业务错误映射为 HTTP 状态码
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, game.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, game.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrInvalidState), errors.Is(err, game.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, game.ErrNotReady):
		status = http.StatusTooEarly
	default:
		utils.ErrorResponse(w, http.StatusInternalServerError, "服务器内部错误", err)
		return
	}
	utils.ErrorResponse(w, status, game.Reason(err), nil)
}

// decodeJSON 解析请求体，allowEmpty 为 true 时空请求体不报错
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	body := http.MaxBytesReader(w, r.Body, MaxBodySize)
	defer func(Body io.ReadCloser) { _ = Body.Close() }(body)

	err := json.NewDecoder(body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		utils.ErrorResponse(w, http.StatusRequestEntityTooLarge, "请求体过大", nil)
		return false
	}
	utils.ErrorResponse(w, http.StatusBadRequest, "无效的请求格式", nil)
	return false
}

// pathID 解析路径中的正整数ID
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		utils.ErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("无效的 %s", name), nil)
		return 0, false
	}
	return id, true
}
