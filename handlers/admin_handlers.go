package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"petshop/models"
	"petshop/store"
)

func GetUserListHandler(c *gin.Context, identity *store.IdentityStore) {
	users, err := identity.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func GetUserDataHandler(c *gin.Context, identity *store.IdentityStore) {
	user, err := identity.Find(c.Request.Context(), idParam(c, "id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func CreateUserHandler(c *gin.Context, identity *store.IdentityStore) {
	var req userRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Name == nil || req.Email == nil || req.Password == nil || req.Role == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Name, email, password and role are required."})
		return
	}

	var user models.User
	msg, err := applyUser(c, identity, &user, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	if msg != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": msg})
		return
	}
	if err := identity.Create(c.Request.Context(), &user); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func UpdateUserHandler(c *gin.Context, identity *store.IdentityStore) {
	user, err := identity.Find(c.Request.Context(), idParam(c, "id"))
	if err != nil {
		writeError(c, err)
		return
	}

	var req userRequest
	if !bindJSON(c, &req) {
		return
	}
	role, password := user.Role, user.Password
	msg, err := applyUser(c, identity, user, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	if msg != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": msg})
		return
	}
	if err := identity.Update(c.Request.Context(), user); err != nil {
		writeError(c, err)
		return
	}
	// sessions carry the role they were issued with
	if user.Role != role || user.Password != password {
		if _, err := identity.RevokeTokens(c.Request.Context(), user.ID); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, user)
}

func DeleteUserHandler(c *gin.Context, identity *store.IdentityStore) {
	if err := identity.Delete(c.Request.Context(), idParam(c, "id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
