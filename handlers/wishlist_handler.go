package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"petshop/reconciler"
)

func GetWishlistHandler(c *gin.Context, wishlist *reconciler.Wishlist) {
	entries, err := wishlist.List(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func AddToWishlistHandler(c *gin.Context, wishlist *reconciler.Wishlist) {
	var req struct {
		ProductID uint `json:"product_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	entry, err := wishlist.Add(c.Request.Context(), userID(c), req.ProductID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// DeleteWishlistItemHandler removes by entry id, or by the product_id query
// parameter when given. Nothing to remove is still a success.
func DeleteWishlistItemHandler(c *gin.Context, wishlist *reconciler.Wishlist) {
	key := reconciler.RemoveKey{
		EntryID:   idParam(c, "id"),
		ProductID: cast.ToUint(c.Query("product_id")),
	}

	deleted, err := wishlist.Remove(c.Request.Context(), userID(c), key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
