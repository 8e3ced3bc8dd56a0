package database

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func TestKVRepositorySQLite(t *testing.T) {
	db, err := Connect(DriverSQLite, filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := NewKVRepository(db)

	if _, ok, err := repo.Get(ctx, "vocastar_kim"); err != nil || ok {
		t.Fatalf("Get() on missing key = ok %v, err %v", ok, err)
	}

	for key, value := range map[string]string{
		"vocastar_kim":   `{"score":10}`,
		"vocastar_lee":   `{"score":20}`,
		"vocastarXpark":  `{}`,
		"other_settings": `{}`,
	} {
		if err := repo.Set(ctx, key, value); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}
	if err := repo.Set(ctx, "vocastar_kim", `{"score":30}`); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	value, ok, err := repo.Get(ctx, "vocastar_kim")
	if err != nil || !ok || value != `{"score":30}` {
		t.Fatalf("Get() = %q, %v, %v", value, ok, err)
	}

	keys, err := repo.ListByPrefix(ctx, "vocastar_")
	if err != nil {
		t.Fatalf("ListByPrefix() error = %v", err)
	}
	// the underscore must match literally, not as a LIKE wildcard
	if want := []string{"vocastar_kim", "vocastar_lee"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("ListByPrefix() = %v, want %v", keys, want)
	}
}
