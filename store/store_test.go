package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"petshop/config"
	"petshop/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCatalogDeleteCascadesToCartAndWishlist(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	catalog := NewCatalogStore(db)

	kibble := &models.Product{Name: "Kibble", Price: decimal.RequireFromString("12.50"), Stock: 4, Category: "Food"}
	leash := &models.Product{Name: "Leash", Price: decimal.RequireFromString("7.00"), Stock: 9, Category: "Walk"}
	for _, p := range []*models.Product{kibble, leash} {
		if err := catalog.Create(ctx, p); err != nil {
			t.Fatalf("create product: %v", err)
		}
	}
	db.Create(&models.CartLine{UserID: 1, ProductID: kibble.ID, Quantity: 2})
	db.Create(&models.CartLine{UserID: 1, ProductID: leash.ID, Quantity: 1})
	db.Create(&models.WishlistEntry{UserID: 2, ProductID: kibble.ID})

	if err := catalog.Delete(ctx, kibble.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var lines, entries int64
	db.Model(&models.CartLine{}).Count(&lines)
	db.Model(&models.WishlistEntry{}).Count(&entries)
	if lines != 1 {
		t.Errorf("cart lines left = %d, want 1 (the leash)", lines)
	}
	if entries != 0 {
		t.Errorf("wishlist entries left = %d, want 0", entries)
	}

	if _, err := catalog.Find(ctx, kibble.ID); err != ErrRecordNotFound {
		t.Errorf("Find deleted product err = %v, want ErrRecordNotFound", err)
	}
}

func TestCatalogDeleteUnknownProduct(t *testing.T) {
	catalog := NewCatalogStore(newTestDB(t))
	if err := catalog.Delete(context.Background(), 404); err != ErrRecordNotFound {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestCatalogKeepsTagsAndPrice(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogStore(newTestDB(t))

	petType := "cat"
	p := &models.Product{
		Name:     "Scratching post",
		Price:    decimal.RequireFromString("39.99"),
		Stock:    3,
		Category: "Furniture",
		PetType:  &petType,
		Tags:     []string{"sisal", "tall"},
	}
	if err := catalog.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := catalog.Find(ctx, p.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !got.Price.Equal(decimal.RequireFromString("39.99")) {
		t.Errorf("price = %s", got.Price)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "sisal" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.PetType == nil || *got.PetType != "cat" {
		t.Errorf("pet type = %v", got.PetType)
	}
}

func TestIdentityDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	identity := NewIdentityStore(db)

	user := &models.User{Name: "Rex Owner", Email: "rex@example.com", Password: "x", Role: models.RoleCustomer}
	if err := identity.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	db.Create(&models.CartLine{UserID: user.ID, ProductID: 1, Quantity: 1})
	db.Create(&models.WishlistEntry{UserID: user.ID, ProductID: 1})
	db.Create(&models.LoginToken{UserID: user.ID, Token: "t", ExpirationTime: time.Now().Add(time.Hour)})

	if err := identity.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, model := range []interface{}{&models.CartLine{}, &models.WishlistEntry{}, &models.LoginToken{}} {
		var count int64
		db.Model(model).Count(&count)
		if count != 0 {
			t.Errorf("%T rows left = %d", model, count)
		}
	}
	if err := identity.Delete(ctx, user.ID); err != ErrRecordNotFound {
		t.Errorf("second Delete err = %v", err)
	}
}

func TestEmailTakenIgnoresSelf(t *testing.T) {
	ctx := context.Background()
	identity := NewIdentityStore(newTestDB(t))

	user := &models.User{Name: "Mia", Email: "mia@example.com", Password: "x", Role: models.RoleCustomer}
	if err := identity.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	taken, err := identity.EmailTaken(ctx, "mia@example.com", 0)
	if err != nil || !taken {
		t.Fatalf("EmailTaken(other) = %v, %v; want true", taken, err)
	}
	taken, err = identity.EmailTaken(ctx, "mia@example.com", user.ID)
	if err != nil || taken {
		t.Fatalf("EmailTaken(self) = %v, %v; want false", taken, err)
	}
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	identity := NewIdentityStore(newTestDB(t))
	now := time.Now()

	live := &models.LoginToken{Token: "live", UserID: 1, ExpirationTime: now.Add(time.Hour)}
	stale := &models.LoginToken{Token: "stale", UserID: 1, ExpirationTime: now.Add(-time.Hour)}
	for _, tok := range []*models.LoginToken{live, stale} {
		if err := identity.SaveToken(ctx, tok); err != nil {
			t.Fatalf("SaveToken: %v", err)
		}
	}

	if ok, _ := identity.TokenActive(ctx, "live"); !ok {
		t.Error("live token should be active")
	}
	if ok, _ := identity.TokenActive(ctx, "stale"); ok {
		t.Error("expired token should not be active")
	}

	purged, err := identity.PurgeExpiredTokens(ctx, now)
	if err != nil || purged != 1 {
		t.Fatalf("PurgeExpiredTokens = %d, %v; want 1", purged, err)
	}

	deleted, err := identity.DeleteToken(ctx, "live")
	if err != nil || !deleted {
		t.Fatalf("DeleteToken = %v, %v", deleted, err)
	}
	if ok, _ := identity.TokenActive(ctx, "live"); ok {
		t.Error("revoked token should not be active")
	}
}

func TestRevokeTokensOnlyTouchesThatUser(t *testing.T) {
	ctx := context.Background()
	identity := NewIdentityStore(newTestDB(t))
	expires := time.Now().Add(time.Hour)

	for _, tok := range []*models.LoginToken{
		{Token: "phone", UserID: 1, ExpirationTime: expires},
		{Token: "laptop", UserID: 1, ExpirationTime: expires},
		{Token: "other", UserID: 2, ExpirationTime: expires},
	} {
		if err := identity.SaveToken(ctx, tok); err != nil {
			t.Fatalf("SaveToken: %v", err)
		}
	}

	revoked, err := identity.RevokeTokens(ctx, 1)
	if err != nil || revoked != 2 {
		t.Fatalf("RevokeTokens = %d, %v; want 2", revoked, err)
	}
	for _, token := range []string{"phone", "laptop"} {
		if ok, _ := identity.TokenActive(ctx, token); ok {
			t.Errorf("token %q still active", token)
		}
	}
	if ok, _ := identity.TokenActive(ctx, "other"); !ok {
		t.Error("another user's token was revoked")
	}
}

func TestEnsureAdminSeedsOnce(t *testing.T) {
	ctx := context.Background()
	identity := NewIdentityStore(newTestDB(t))

	created, err := identity.EnsureAdmin(ctx, "Boss", "boss@example.com", "secret-pw")
	if err != nil || !created {
		t.Fatalf("first EnsureAdmin = %v, %v", created, err)
	}
	created, err = identity.EnsureAdmin(ctx, "Boss", "other@example.com", "secret-pw")
	if err != nil || created {
		t.Fatalf("second EnsureAdmin = %v, %v; want false", created, err)
	}

	admin, err := identity.FindByEmail(ctx, "boss@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if !admin.IsAdmin() || !CheckPassword(admin, "secret-pw") {
		t.Errorf("seeded admin = %+v", admin)
	}
}
