// Package seed migrates the schema and creates demo tenants and accounts.
package seed

import (
	"context"
	"errors"
	"fmt"

	"communityos/internal/audit"
	"communityos/internal/content"
	"communityos/internal/group"
	"communityos/internal/messaging"
	"communityos/internal/moderation"
	"communityos/internal/notification"
	"communityos/internal/poll"
	"communityos/internal/tenant"
	"communityos/internal/tenantdb"
	"communityos/internal/user"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options controls MigrateAndSeed.
type Options struct {
	Migrate    bool
	Seed       bool
	Fixtures   *Fixtures
	BcryptCost int
	Logger     *zap.Logger
}

// Models returns every tenant-scoped model of the application.
func Models() []any {
	models := []any{&user.User{}, &notification.Notification{}, &audit.Entry{}}
	models = append(models, content.Models()...)
	models = append(models, group.Models()...)
	models = append(models, messaging.Models()...)
	models = append(models, poll.Models()...)
	models = append(models, moderation.Models()...)
	return models
}

// composite keys unique within a tenant
var uniqueIndexes = []struct{ name, table, columns string }{
	{"ux_users_tenant_email", "users", "tenant_id, email"},
	{"ux_reactions_tenant_user_post", "reactions", "tenant_id, user_id, post_id, type"},
	{"ux_bookmarks_tenant_user_post", "bookmarks", "tenant_id, user_id, post_id"},
	{"ux_group_members_tenant_group_user", "group_members", "tenant_id, group_id, user_id"},
	{"ux_group_posts_tenant_group_post", "group_posts", "tenant_id, group_id, post_id"},
	{"ux_participants_tenant_conv_user", "conversation_participants", "tenant_id, conversation_id, user_id"},
	{"ux_conversations_tenant_pair", "conversations", "tenant_id, direct_user_a_id, direct_user_b_id"},
	{"ux_polls_tenant_post", "polls", "tenant_id, post_id"},
	{"ux_poll_votes_tenant_poll_user", "poll_votes", "tenant_id, poll_id, user_id"},
}

// MigrateAndSeed registers every model with plugin and, as configured,
// migrates the schema and seeds an empty tenants table. It runs as its own
// unit of work and walks the seeded tenants one at a time.
func MigrateAndSeed(ctx context.Context, db *gorm.DB, plugin *tenantdb.Plugin, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ctx, tc := tenant.BeginUnit(ctx)
	tc.Clear()

	models := Models()
	if opts.Migrate {
		ddl := db.WithContext(tenantdb.ForMigration(ctx))
		if err := ddl.AutoMigrate(append([]any{&tenant.Tenant{}}, models...)...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		for _, ix := range uniqueIndexes {
			sql := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)", ix.name, ix.table, ix.columns)
			if err := ddl.Exec(sql).Error; err != nil {
				return fmt.Errorf("create index %s: %w", ix.name, err)
			}
		}
		log.Info("schema migrated", zap.Int("models", len(models)+1))
	}
	if err := plugin.Register(db, models...); err != nil {
		return err
	}
	if !opts.Seed {
		return nil
	}

	fixtures := opts.Fixtures
	if fixtures == nil {
		fixtures = Default()
	}
	tenants := tenant.NewRepository(db)
	n, err := tenants.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("tenants present, skipping seed", zap.Int64("tenants", n))
		return nil
	}

	users := user.NewService(db, opts.BcryptCost)
	for i := range fixtures.Tenants {
		tf := &fixtures.Tenants[i]
		row := &tenant.Tenant{TenantID: tf.ID, Code: tf.Code, Name: tf.Name}
		if err := tenants.Create(ctx, row); err != nil {
			return err
		}
		tf.ID = row.TenantID

		tc.Set(tf.ID, false)
		for _, uf := range tf.Users {
			if _, err := register(ctx, users, uf, ""); err != nil {
				return fmt.Errorf("seed %s user %s: %w", tf.Code, uf.Email, err)
			}
		}
		log.Info("tenant seeded", zap.String("code", tf.Code), zap.Int("users", len(tf.Users)))
	}

	if o := fixtures.PlatformOwner; o != nil {
		home := fixtures.tenantByCode(o.TenantCode)
		if home == nil {
			return fmt.Errorf("seed: platform owner tenant %q is not seeded", o.TenantCode)
		}
		tc.Set(home.ID, false)
		if _, err := register(ctx, users, o.UserFixture, tenant.RolePlatformOwner); err != nil {
			return fmt.Errorf("seed platform owner: %w", err)
		}
		log.Info("platform owner seeded", zap.String("tenant", home.Code))
	}
	tc.Clear()
	return nil
}

func register(ctx context.Context, users *user.Service, f UserFixture, role tenant.Role) (*user.User, error) {
	if role == "" {
		role = tenant.RoleMember
		if r, ok := tenant.ParseRole(f.Role); ok {
			role = r
		}
	}
	in := user.RegisterInput{
		Email:     f.Email,
		Password:  f.Password,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Role:      role,
	}
	if f.City != "" {
		city := f.City
		in.City = &city
	}
	u, err := users.Register(ctx, in)
	if errors.Is(err, user.ErrEmailTaken) {
		return users.FindByEmail(ctx, f.Email)
	}
	return u, err
}
