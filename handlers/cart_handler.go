package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"petshop/reconciler"
)

func GetCartHandler(c *gin.Context, cart *reconciler.Cart) {
	view, err := cart.List(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func AddToCartHandler(c *gin.Context, cart *reconciler.Cart) {
	var req struct {
		ProductID uint `json:"product_id" binding:"required"`
		Quantity  *int `json:"quantity"`
	}
	if !bindJSON(c, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	line, err := cart.Add(c.Request.Context(), userID(c), req.ProductID, quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   "Item added to cart",
		"cart_item": line,
	})
}

func UpdateCartItemQuantityHandler(c *gin.Context, cart *reconciler.Cart) {
	var req struct {
		Quantity *int `json:"quantity" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	line, err := cart.UpdateQuantity(c.Request.Context(), userID(c), idParam(c, "id"), *req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Cart updated",
		"cart_item": line,
	})
}

func DeleteCartItemHandler(c *gin.Context, cart *reconciler.Cart) {
	if err := cart.Remove(c.Request.Context(), userID(c), idParam(c, "id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

func ClearCartHandler(c *gin.Context, cart *reconciler.Cart) {
	if err := cart.Clear(c.Request.Context(), userID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

// GetCartCountHandler answers for anonymous callers too, with 0.
func GetCartCountHandler(c *gin.Context, cart *reconciler.Cart) {
	count, err := cart.Count(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MergeCartHandler folds a cart kept on the client into the user's cart
// (called after login or register).
func MergeCartHandler(c *gin.Context, cart *reconciler.Cart) {
	var req struct {
		Items []reconciler.MergeItem `json:"items" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	view, err := cart.Merge(c.Request.Context(), userID(c), req.Items)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
