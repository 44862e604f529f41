package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"petshop/jwt"
	"petshop/models"
	"petshop/store"
)

type userRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=255"`
	Email    *string `json:"email" binding:"omitempty,email,max=191"`
	Password *string `json:"password" binding:"omitempty,min=6"`
	Role     *string `json:"role"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
	Address  *string `json:"address" binding:"omitempty,max=500"`
}

// applyUser copies the submitted fields onto user, enforcing email
// uniqueness. It returns a client-facing message when the request is invalid.
func applyUser(c *gin.Context, identity *store.IdentityStore, user *models.User, req *userRequest) (string, error) {
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		taken, err := identity.EmailTaken(c.Request.Context(), email, user.ID)
		if err != nil {
			return "", err
		}
		if taken {
			return "The email has already been taken.", nil
		}
		user.Email = email
	}
	if req.Role != nil {
		role := models.Role(*req.Role)
		if !role.Valid() {
			return "The selected role is invalid.", nil
		}
		user.Role = role
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return "The name field is required.", nil
		}
		user.Name = name
	}
	if req.Password != nil && *req.Password != "" {
		hashed, err := store.HashPassword(*req.Password)
		if err != nil {
			return "", err
		}
		user.Password = hashed
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.Address != nil {
		user.Address = req.Address
	}
	return "", nil
}

// issueToken signs a token for user and records it so it can be revoked.
func issueToken(c *gin.Context, signer *jwt.Signer, identity *store.IdentityStore, user *models.User) (gin.H, error) {
	token, expiresAt, err := signer.Issue(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	err = identity.SaveToken(c.Request.Context(), &models.LoginToken{
		Token:          token,
		ExpirationTime: expiresAt,
		UserID:         user.ID,
		Role:           user.Role,
	})
	if err != nil {
		return nil, err
	}
	return gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expiresAt,
		"user":       user,
	}, nil
}

// RegisterHandler creates a customer account and logs it in.
func RegisterHandler(c *gin.Context, signer *jwt.Signer, identity *store.IdentityStore) {
	var req userRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Name == nil || req.Email == nil || req.Password == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Name, email and password are required."})
		return
	}
	req.Role = nil

	user := models.User{Role: models.RoleCustomer}
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

	resp, err := issueToken(c, signer, identity, &user)
	if err != nil {
		writeError(c, err)
		return
	}
	resp["message"] = "Registered successfully"
	c.JSON(http.StatusCreated, resp)
}

func LoginHandler(c *gin.Context, signer *jwt.Signer, identity *store.IdentityStore) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	user, err := identity.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		writeError(c, err)
		return
	}
	if user == nil || !store.CheckPassword(user, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	resp, err := issueToken(c, signer, identity, user)
	if err != nil {
		writeError(c, err)
		return
	}
	resp["message"] = "Login successful"
	zap.S().Infow("user logged in", "user_id", user.ID)
	c.JSON(http.StatusOK, resp)
}

// LogOutHandler revokes the token the request was made with.
func LogOutHandler(c *gin.Context, identity *store.IdentityStore) {
	if _, err := identity.DeleteToken(c.Request.Context(), c.GetString("Token")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func GetUserProfileHandler(c *gin.Context, identity *store.IdentityStore) {
	user, err := identity.Find(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUserProfileHandler edits the caller's own account. Role cannot be
// changed here.
func UpdateUserProfileHandler(c *gin.Context, identity *store.IdentityStore) {
	user, err := identity.Find(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	var req userRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Role = nil

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
	c.JSON(http.StatusOK, user)
}

// DeleteUserProfileHandler closes the caller's own account.
func DeleteUserProfileHandler(c *gin.Context, identity *store.IdentityStore) {
	if err := identity.Delete(c.Request.Context(), userID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}
