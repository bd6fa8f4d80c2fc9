package database

import (
	"io/fs"
	"strings"
	"testing"

	"storefront/migrations"
)

func readMigration(t *testing.T, name string) string {
	t.Helper()
	content, err := fs.ReadFile(migrations.FS, name)
	if err != nil {
		t.Fatalf("Failed to read migration %s: %v", name, err)
	}
	return string(content)
}

func TestMigrationFilesExist(t *testing.T) {
	expectedMigrations := []string{
		"00001_create_users_table.sql",
		"00002_create_refresh_tokens_table.sql",
		"00003_create_categories_table.sql",
		"00004_create_products_table.sql",
		"00005_create_cart_items_table.sql",
		"00006_create_orders_table.sql",
		"00007_create_order_items_table.sql",
		"00008_seed_categories.sql",
		"00009_create_updated_at_trigger.sql",
	}

	for _, migration := range expectedMigrations {
		if _, err := fs.Stat(migrations.FS, migration); err != nil {
			t.Errorf("Migration file %s is not embedded: %v", migration, err)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	files, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		t.Fatalf("Failed to read embedded migrations: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		sqlFileCount++

		content := readMigration(t, file.Name())
		for _, directive := range []string{
			"-- +goose Up",
			"-- +goose Down",
			"-- +goose StatementBegin",
			"-- +goose StatementEnd",
		} {
			if !strings.Contains(content, directive) {
				t.Errorf("Migration file %s missing '%s' directive", file.Name(), directive)
			}
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	expectedTables := map[string]string{
		"users":          "00001_create_users_table.sql",
		"refresh_tokens": "00002_create_refresh_tokens_table.sql",
		"categories":     "00003_create_categories_table.sql",
		"products":       "00004_create_products_table.sql",
		"cart_items":     "00005_create_cart_items_table.sql",
		"orders":         "00006_create_orders_table.sql",
		"order_items":    "00007_create_order_items_table.sql",
	}

	for tableName, migrationFile := range expectedTables {
		content := readMigration(t, migrationFile)

		if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS "+tableName) {
			t.Errorf("Migration file %s does not create table %s", migrationFile, tableName)
		}
		if !strings.Contains(content, "DROP TABLE IF EXISTS "+tableName) {
			t.Errorf("Migration file %s does not drop table %s in down section", migrationFile, tableName)
		}
	}
}

func TestUsersTableHasUniqueIdentity(t *testing.T) {
	content := readMigration(t, "00001_create_users_table.sql")

	for _, fragment := range []string{
		"CONSTRAINT users_email_key UNIQUE (email)",
		"CONSTRAINT users_nickname_key UNIQUE (nickname)",
		"password_hash VARCHAR",
		"role IN ('customer', 'admin')",
	} {
		if !strings.Contains(content, fragment) {
			t.Errorf("Users table missing %q", fragment)
		}
	}
}

func TestProductsTableKeepsOptionOrderAndStockInvariant(t *testing.T) {
	content := readMigration(t, "00004_create_products_table.sql")

	for _, fragment := range []string{
		"base_price DECIMAL(10, 2)",
		"options JSON NOT NULL",
		"CHECK (stock_quantity >= 0)",
		"FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE",
	} {
		if !strings.Contains(content, fragment) {
			t.Errorf("Products table missing %q", fragment)
		}
	}
}

func TestOrdersTableHasStatusConstraint(t *testing.T) {
	content := readMigration(t, "00006_create_orders_table.sql")

	for _, status := range []string{"'Pending'", "'Confirmed'", "'Payment Pending'", "'Payment Received'", "'Delivered'", "'Canceled'"} {
		if !strings.Contains(content, status) {
			t.Errorf("Orders table status constraint missing value: %s", status)
		}
	}

	if !strings.Contains(content, "REFERENCES users(id) ON DELETE RESTRICT") {
		t.Error("Orders must restrict deletion of users with order history")
	}
}

func TestOrderItemsRestrictProductDeletion(t *testing.T) {
	content := readMigration(t, "00007_create_order_items_table.sql")

	if !strings.Contains(content, "REFERENCES products(id) ON DELETE RESTRICT") {
		t.Error("Order items must restrict deletion of referenced products")
	}
	if !strings.Contains(content, "REFERENCES orders(id) ON DELETE CASCADE") {
		t.Error("Order items must cascade with their order")
	}
}

func TestCartItemsTableHasLineKey(t *testing.T) {
	content := readMigration(t, "00005_create_cart_items_table.sql")

	if !strings.Contains(content, "UNIQUE (user_id, product_id, selected_options)") {
		t.Error("Cart items table missing unique constraint on (user_id, product_id, selected_options)")
	}
	if !strings.Contains(content, "selected_options JSONB") {
		t.Error("Cart line options must be JSONB so equal selections compare equal")
	}
}
