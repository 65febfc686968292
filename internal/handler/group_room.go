package handler

import (
	"net/http"
	"time"

	"chat_backend/internal/service"
	"chat_backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type GroupRoomHandler struct {
	roomService service.GroupRoomService
	log         logger.Logger
}

func NewGroupRoomHandler(roomService service.GroupRoomService, log logger.Logger) *GroupRoomHandler {
	return &GroupRoomHandler{
		roomService: roomService,
		log:         log,
	}
}

type CreateGroupRoomRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	MaxMembers  int    `json:"max_members"`
}

type UpdateGroupRoomRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	MaxMembers  *int    `json:"max_members,omitempty"`
}

type AddMemberRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type MuteMemberRequest struct {
	Muted bool       `json:"muted"`
	Until *time.Time `json:"until,omitempty"`
}

type SendGroupMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *GroupRoomHandler) Create(c *gin.Context) {
	userID, _, _ := currentUser(c)
	var req CreateGroupRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), userID, req.Name, req.Description, req.MaxMembers)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *GroupRoomHandler) ListMine(c *gin.Context) {
	userID, _, _ := currentUser(c)
	rooms, err := h.roomService.GetUserRooms(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

func (h *GroupRoomHandler) Search(c *gin.Context) {
	rooms, err := h.roomService.SearchRooms(c.Request.Context(), c.Query("q"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

func (h *GroupRoomHandler) Update(c *gin.Context) {
	userID, _, _ := currentUser(c)
	var req UpdateGroupRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomService.UpdateRoom(c.Request.Context(), c.Param("id"), userID, service.UpdateRoomInput{
		Name:        req.Name,
		Description: req.Description,
		MaxMembers:  req.MaxMembers,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *GroupRoomHandler) Delete(c *gin.Context) {
	userID, _, _ := currentUser(c)
	if err := h.roomService.DeleteRoom(c.Request.Context(), c.Param("id"), userID); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *GroupRoomHandler) Members(c *gin.Context) {
	userID, _, _ := currentUser(c)
	members, err := h.roomService.GetRoomMembers(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, members)
}

func (h *GroupRoomHandler) AddMember(c *gin.Context) {
	userID, _, _ := currentUser(c)
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.roomService.AddMember(c.Request.Context(), c.Param("id"), userID, req.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, member)
}

func (h *GroupRoomHandler) RemoveMember(c *gin.Context) {
	userID, _, _ := currentUser(c)
	targetID, err := paramInt64(c, "userId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	if err := h.roomService.RemoveMember(c.Request.Context(), c.Param("id"), userID, targetID); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *GroupRoomHandler) MuteMember(c *gin.Context) {
	userID, _, _ := currentUser(c)
	targetID, err := paramInt64(c, "userId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}
	var req MuteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.roomService.MuteMember(c.Request.Context(), c.Param("id"), userID, targetID, req.Muted, req.Until); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *GroupRoomHandler) PromoteMember(c *gin.Context) {
	userID, _, _ := currentUser(c)
	targetID, err := paramInt64(c, "userId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	if err := h.roomService.PromoteMember(c.Request.Context(), c.Param("id"), userID, targetID); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *GroupRoomHandler) Leave(c *gin.Context) {
	userID, _, _ := currentUser(c)
	if err := h.roomService.LeaveRoom(c.Request.Context(), c.Param("id"), userID); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *GroupRoomHandler) Messages(c *gin.Context) {
	userID, _, _ := currentUser(c)
	messages, err := h.roomService.GetRoomMessages(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *GroupRoomHandler) SendMessage(c *gin.Context) {
	userID, _, _ := currentUser(c)
	var req SendGroupMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.roomService.SendMessage(c.Request.Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

func (h *GroupRoomHandler) MarkAsRead(c *gin.Context) {
	userID, _, _ := currentUser(c)
	if err := h.roomService.MarkAsRead(c.Request.Context(), c.Param("id"), userID); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
