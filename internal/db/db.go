package db

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Conn *pgxpool.Pool

// Init connects to Postgres and makes sure the schema is in place.
func Init(dsn string) {
	var err error
	Conn, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}

	if err = Conn.Ping(context.Background()); err != nil {
		log.Fatalf("Unable to ping database: %v\n", err)
	}

	log.Println("Connected to Postgres successfully")

	ensureUserTables()
	ensureShopAndCategoryTables()
	ensureItemTables()
	ensureModerationTables()
}

// ensureUserTables creates users and user_roles if missing. Accounts are
// keyed by the identity provider's subject; no credentials are stored
// locally.
func ensureUserTables() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            auth_sub TEXT NOT NULL UNIQUE,
            email TEXT NULL,
            display_name TEXT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE TABLE IF NOT EXISTS user_roles (
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            role TEXT NOT NULL CHECK (role IN ('BUYER','SELLER','ADMIN')),
            UNIQUE (user_id, role)
        );
        CREATE INDEX IF NOT EXISTS idx_user_roles_user ON user_roles(user_id);
    `)
	if err != nil {
		log.Printf("failed to ensure user tables: %v", err)
	}
}

// ensureShopAndCategoryTables creates shops and categories if missing.
func ensureShopAndCategoryTables() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS shops (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            description TEXT NULL,
            logo_url TEXT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_shops_owner ON shops(owner_id);

        CREATE TABLE IF NOT EXISTS categories (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            name TEXT NOT NULL UNIQUE,
            parent_id UUID NULL REFERENCES categories(id) ON DELETE SET NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE
        );
    `)
	if err != nil {
		log.Printf("failed to ensure shop/category tables: %v", err)
	}
}

// ensureItemTables creates items and item_images if missing. The status
// constraint mirrors the listing lifecycle.
func ensureItemTables() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS items (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            shop_id UUID NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
            category_id UUID NULL REFERENCES categories(id) ON DELETE SET NULL,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            price DOUBLE PRECISION NOT NULL CHECK (price > 0),
            shipping_cost DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (shipping_cost >= 0),
            currency TEXT NOT NULL DEFAULT 'EUR',
            status TEXT NOT NULL DEFAULT 'DRAFT'
                CHECK (status IN ('DRAFT','PENDING_REVIEW','PUBLISHED','REJECTED','SOLD')),
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_items_shop ON items(shop_id);
        CREATE INDEX IF NOT EXISTS idx_items_status_updated ON items(status, updated_at DESC, id DESC);

        CREATE TABLE IF NOT EXISTS item_images (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            item_id UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
            url TEXT NOT NULL,
            position INTEGER NOT NULL DEFAULT 0,
            is_primary BOOLEAN NOT NULL DEFAULT FALSE
        );
        CREATE INDEX IF NOT EXISTS idx_item_images_item ON item_images(item_id, position);
    `)
	if err != nil {
		log.Printf("failed to ensure item tables: %v", err)
	}
}

// ensureModerationTables creates the per-item moderation snapshot
// (one row per item, upserted) and the append-only review ledger.
func ensureModerationTables() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS item_moderation (
            item_id UUID PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
            title_status TEXT NOT NULL CHECK (title_status IN ('GREEN','ORANGE','RED')),
            description_status TEXT NOT NULL CHECK (description_status IN ('GREEN','ORANGE','RED')),
            images_status TEXT NOT NULL CHECK (images_status IN ('GREEN','ORANGE','RED')),
            auto_score DOUBLE PRECISION NOT NULL DEFAULT 0,
            auto_details JSONB NULL,
            human_status TEXT NOT NULL DEFAULT 'PENDING'
                CHECK (human_status IN ('PENDING','APPROVED','REJECTED')),
            reviewer_id UUID NULL REFERENCES users(id) ON DELETE SET NULL,
            reviewed_at TIMESTAMP WITH TIME ZONE NULL,
            review_note TEXT NULL
        );

        CREATE TABLE IF NOT EXISTS item_reviews (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            item_id UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
            admin_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            decision TEXT NOT NULL CHECK (decision IN ('PUBLISHED','REJECTED')),
            notes TEXT NOT NULL,
            traffic_title TEXT NOT NULL DEFAULT 'GREEN',
            traffic_description TEXT NOT NULL DEFAULT 'GREEN',
            traffic_photo TEXT NOT NULL DEFAULT 'GREEN',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_item_reviews_item ON item_reviews(item_id, created_at DESC);
    `)
	if err != nil {
		log.Printf("failed to ensure moderation tables: %v", err)
	}
}
