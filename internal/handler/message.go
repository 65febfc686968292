package handler

import (
	"net/http"

	"chat_backend/internal/service"
	"chat_backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// MessageHandler - REST-доступ к истории живых комнат и отметкам о прочтении
type MessageHandler struct {
	messageService service.MessageService
	receiptService service.ReceiptService
	log            logger.Logger
}

func NewMessageHandler(messageService service.MessageService, receiptService service.ReceiptService, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		receiptService: receiptService,
		log:            log,
	}
}

// RoomMessages GET /rooms/:id/messages?page=&size=
func (h *MessageHandler) RoomMessages(c *gin.Context) {
	page := queryInt(c, "page", 0)
	size := queryInt(c, "size", 0)

	messages, err := h.messageService.AllMessages(c.Request.Context(), c.Param("id"), page, size)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"page":     page,
	})
}

func (h *MessageHandler) Unread(c *gin.Context) {
	userID, username, _ := currentUser(c)

	count, err := h.receiptService.UnreadCount(c.Request.Context(), c.Param("id"), userID, username)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": c.Param("id"), "unread": count})
}

func (h *MessageHandler) Reads(c *gin.Context) {
	userID, _, _ := currentUser(c)
	messageID, err := paramInt64(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message ID"})
		return
	}

	ctx := c.Request.Context()
	count, err := h.receiptService.ReadCount(ctx, messageID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	read, err := h.receiptService.IsRead(ctx, messageID, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message_id": messageID, "read_count": count, "read_by_me": read})
}

// MarkRead POST /messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, _, _ := currentUser(c)
	messageID, err := paramInt64(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message ID"})
		return
	}

	receipt, err := h.receiptService.MarkRead(c.Request.Context(), messageID, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}
