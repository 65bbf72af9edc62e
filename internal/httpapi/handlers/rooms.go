package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/collabnote/internal/common"
	"github.com/suPer8Hu/collabnote/internal/httpapi/middleware"
	"github.com/suPer8Hu/collabnote/internal/room"
)

func currentUser(c *gin.Context) (string, string, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return "", "", false
	}
	return uid, middleware.Email(c), true
}

func (h *Handler) ListRooms(c *gin.Context) {
	uid, email, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	common.OK(c, gin.H{
		"owned":  h.Rooms.ListOwnedRooms(ctx, uid),
		"shared": h.Rooms.ListAccessibleRooms(ctx, uid, email),
	})
}

type createRoomReq struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

func (h *Handler) CreateRoom(c *gin.Context) {
	uid, email, ok := currentUser(c)
	if !ok {
		return
	}
	var req createRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	rm, err := h.Rooms.CreateRoom(c.Request.Context(), room.CreateRoomInput{
		Name:         req.Name,
		Description:  req.Description,
		MemberEmails: req.Members,
		OwnerID:      uid,
		OwnerEmail:   email,
	})
	if err != nil {
		if errors.Is(err, room.ErrInvalidInput) {
			common.Fail(c, http.StatusBadRequest, 10002, "name and owner email required")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50010, err.Error())
		return
	}
	common.Created(c, rm)
}

type renameRoomReq struct {
	Name string `json:"name"`
}

func (h *Handler) RenameRoom(c *gin.Context) {
	var req renameRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if err := h.Rooms.RenameRoom(c.Request.Context(), c.Param("id"), req.Name); err != nil {
		if errors.Is(err, room.ErrInvalidInput) {
			common.Fail(c, http.StatusBadRequest, 10002, "name required")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50011, err.Error())
		return
	}
	common.OK(c, gin.H{"id": c.Param("id"), "name": req.Name})
}

// RoomAccess guards /api/rooms/:id routes. Unknown rooms and rooms the user
// cannot see both answer 403.
func (h *Handler) RoomAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, email, ok := currentUser(c)
		if !ok {
			return
		}
		roomID := c.Param("id")
		allowed, err := h.Rooms.CanAccess(c.Request.Context(), roomID, uid, email)
		if err != nil {
			h.Log.Error().Err(err).Str("room_id", roomID).Msg("room access check failed")
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
		if !allowed {
			common.Fail(c, http.StatusForbidden, 40301, "no access to room")
			return
		}
		c.Next()
	}
}
