package service

import "errors"

// 會直接以錯誤事件回覆請求方的錯誤；其他錯誤一律記錄後回覆通用訊息
var (
	ErrConversationNotFound = errors.New("找不到對話")
	ErrSessionNotFound      = errors.New("找不到諮詢場次")
	ErrNotParticipant       = errors.New("使用者不是此房間的參與者")
	ErrNotInRoom            = errors.New("必須先加入諮詢房間")
	ErrInvalidTransition    = errors.New("場次狀態不允許此操作")
	ErrInvalidStatus        = errors.New("無效的在線狀態")
	ErrNotTracked           = errors.New("用戶尚未建立任何連線")
	ErrChannelForbidden     = errors.New("無法訂閱此通知頻道")
	ErrUnknownEvent         = errors.New("未知的事件類型")
	ErrMalformedPayload     = errors.New("無效的訊息格式")
)

var clientFacingErrors = []error{
	ErrConversationNotFound,
	ErrSessionNotFound,
	ErrNotParticipant,
	ErrNotInRoom,
	ErrInvalidTransition,
	ErrInvalidStatus,
	ErrNotTracked,
	ErrChannelForbidden,
	ErrUnknownEvent,
	ErrMalformedPayload,
}

// clientFacing 判斷錯誤是否可以原樣回覆給客戶端
func clientFacing(err error) bool {
	for _, candidate := range clientFacingErrors {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
