package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"telecare_rtc/internal/service"
	"telecare_rtc/internal/utils"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 注意：在生產環境中，應該檢查 origin
	},
}

// WebSocketHandler 處理 WebSocket 連接。認證在升級前完成一次，
// 憑證無效或帳號停用的連接直接拒絕，之後不再重驗
type WebSocketHandler struct {
	hub         *service.Hub
	userService *service.UserService
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
func NewWebSocketHandler(hub *service.Hub, userService *service.UserService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		userService: userService,
	}
}

// HandleWebSocket 處理 WebSocket 連接請求
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	// 瀏覽器的 WebSocket API 無法帶請求頭，token 也接受從查詢參數傳入
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少認證token"})
		return
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	// 確認帳號仍然存在且未停用
	user, err := h.userService.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "找不到使用者"})
		return
	}
	if !user.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "帳號已停用"})
		return
	}

	// 認證通過後才升級連接
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "升級WebSocket失敗"})
		return
	}

	client := service.NewClient(conn, user.ID, string(user.Role))
	h.hub.HandleClient(client)
}
