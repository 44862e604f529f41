package routers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"petshop/cache"
	"petshop/config"
	"petshop/handlers"
	"petshop/jwt"
	"petshop/middleware"
	"petshop/reconciler"
	"petshop/store"
)

func SetupRouters(db *gorm.DB, rdb *redis.Client, signer *jwt.Signer, server config.ServerConfig) *gin.Engine {
	catalog := store.NewCatalogStore(db)
	identity := store.NewIdentityStore(db)
	products := cache.NewProducts(rdb, catalog)
	cart := reconciler.NewCart(db)
	wishlist := reconciler.NewWishlist(db)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS(server.AllowOrigins))
	if err := router.SetTrustedProxies(nil); err != nil {
		panic(err)
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	})

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(signer, identity))
	{
		//public
		api.GET("/products", func(c *gin.Context) {
			handlers.GetProductListHandler(c, products)
		})
		api.GET("/products/:id", func(c *gin.Context) {
			handlers.GetProductDataHandler(c, catalog)
		})
		api.POST("/register", func(c *gin.Context) {
			handlers.RegisterHandler(c, signer, identity)
		})
		api.POST("/login", func(c *gin.Context) {
			handlers.LoginHandler(c, signer, identity)
		})
		//answers 0 for anonymous callers
		api.GET("/cart/count", func(c *gin.Context) {
			handlers.GetCartCountHandler(c, cart)
		})

		loginRequired := api.Group("")
		loginRequired.Use(middleware.CheckLoginMiddleware())
		{
			loginRequired.POST("/logout", func(c *gin.Context) {
				handlers.LogOutHandler(c, identity)
			})
			loginRequired.GET("/user", func(c *gin.Context) {
				handlers.GetUserProfileHandler(c, identity)
			})
			loginRequired.PUT("/user", func(c *gin.Context) {
				handlers.UpdateUserProfileHandler(c, identity)
			})
			loginRequired.DELETE("/user", func(c *gin.Context) {
				handlers.DeleteUserProfileHandler(c, identity)
			})

			loginRequired.GET("/cart", func(c *gin.Context) {
				handlers.GetCartHandler(c, cart)
			})
			loginRequired.POST("/cart", func(c *gin.Context) {
				handlers.AddToCartHandler(c, cart)
			})
			loginRequired.POST("/cart/merge", func(c *gin.Context) {
				handlers.MergeCartHandler(c, cart)
			})
			loginRequired.PUT("/cart/:id", func(c *gin.Context) {
				handlers.UpdateCartItemQuantityHandler(c, cart)
			})
			loginRequired.DELETE("/cart/:id", func(c *gin.Context) {
				handlers.DeleteCartItemHandler(c, cart)
			})
			loginRequired.DELETE("/cart", func(c *gin.Context) {
				handlers.ClearCartHandler(c, cart)
			})

			loginRequired.GET("/wishlist", func(c *gin.Context) {
				handlers.GetWishlistHandler(c, wishlist)
			})
			loginRequired.POST("/wishlist", func(c *gin.Context) {
				handlers.AddToWishlistHandler(c, wishlist)
			})
			loginRequired.DELETE("/wishlist/:id", func(c *gin.Context) {
				handlers.DeleteWishlistItemHandler(c, wishlist)
			})
		}

		adminRequired := api.Group("")
		adminRequired.Use(middleware.CheckLoginMiddleware(), middleware.CheckAdminPermissionMiddleware())
		{
			adminRequired.POST("/products", func(c *gin.Context) {
				handlers.CreateProductHandler(c, catalog, products)
			})
			adminRequired.PUT("/products/:id", func(c *gin.Context) {
				handlers.UpdateProductHandler(c, catalog, products)
			})
			adminRequired.DELETE("/products/:id", func(c *gin.Context) {
				handlers.DeleteProductHandler(c, catalog, products)
			})

			adminRequired.GET("/users", func(c *gin.Context) {
				handlers.GetUserListHandler(c, identity)
			})
			adminRequired.GET("/users/:id", func(c *gin.Context) {
				handlers.GetUserDataHandler(c, identity)
			})
			adminRequired.POST("/users", func(c *gin.Context) {
				handlers.CreateUserHandler(c, identity)
			})
			adminRequired.PUT("/users/:id", func(c *gin.Context) {
				handlers.UpdateUserHandler(c, identity)
			})
			adminRequired.DELETE("/users/:id", func(c *gin.Context) {
				handlers.DeleteUserHandler(c, identity)
			})
		}
	}

	return router
}
