package handler

import (
	"io"
	"net/http"
	"strings"

	"alice-srv/internal/middleware"
	"alice-srv/pkg/utils"
)

// GetAuth 处理 GET /auth
// 认证由中间件完成，未知用户已自动注册
func (h *Handler) GetAuth(w http.ResponseWriter, r *http.Request) {
	utils.JSONResponse(w, http.StatusOK, map[string]string{"userId": middleware.GetUserID(r)})
}

// PutAuth 处理 PUT /auth
// 请求体为新密码原文
func (h *Handler) PutAuth(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		utils.ErrorResponse(w, http.StatusUnauthorized, "未认证", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1024))
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "读取请求体失败", nil)
		return
	}
	defer func(Body io.ReadCloser) { _ = Body.Close() }(r.Body)

	newPassword := strings.TrimSpace(string(body))
	if newPassword == "" {
		utils.ErrorResponse(w, http.StatusBadRequest, "密码不能为空", nil)
		return
	}

	if err := h.Auth.ChangePassword(r.Context(), userID, newPassword, utils.GetClientIP(r)); err != nil {
		utils.ErrorResponse(w, http.StatusInternalServerError, "更新密码失败", err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, map[string]string{"message": "密码已更新"})
}
