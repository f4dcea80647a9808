package roster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"sitepresence/internal/infrastructure/persistence/sqlite/model"
	"sitepresence/internal/infrastructure/persistence/sqlite/repository"
	"sitepresence/internal/infrastructure/persistence/sqlite/uow"
)

func setupRosterService(t *testing.T) (*Service, *repository.AttendanceRepository) {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "roster.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	repo := repository.NewAttendanceRepository(db)
	return NewService(repo, uow.NewUnitOfWork(db)), repo
}

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	return path
}

const northYard = `
[site]
id = "north-yard"
name = "North Yard"
timezone = "Asia/Jakarta"

[[members]]
id = "w1"
name = "Ayu"
role = "welder"

[[members]]
id = "w2"
name = "Budi"
`

func TestImportUpsertsAndPrunes(t *testing.T) {
	svc, repo := setupRosterService(t)
	ctx := context.Background()

	result, err := svc.Import(ctx, writeRoster(t, northYard), false)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.SiteID != "north-yard" || result.Upserted != 2 || result.Removed != 0 {
		t.Fatalf("Import() = %+v", result)
	}

	updated := `
[site]
id = "north-yard"
name = "North Yard"

[[members]]
id = "w2"
name = "Budi S."
`
	result, err = svc.Import(ctx, writeRoster(t, updated), true)
	if err != nil {
		t.Fatalf("Import(prune) error = %v", err)
	}
	if result.Upserted != 1 || result.Removed != 1 {
		t.Fatalf("Import(prune) = %+v", result)
	}

	members, err := repo.ListRoster(ctx, "north-yard")
	if err != nil {
		t.Fatalf("ListRoster() error = %v", err)
	}
	if len(members) != 1 || members[0].SubjectID != "w2" || members[0].Name != "Budi S." {
		t.Fatalf("roster = %+v", members)
	}
}

func TestImportRejectsInvalidFiles(t *testing.T) {
	svc, repo := setupRosterService(t)

	cases := map[string]string{
		"missing site id":  "[site]\nname = \"x\"\n",
		"bad timezone":     "[site]\nid = \"s\"\ntimezone = \"Mars/Base\"\n",
		"member id":        "[site]\nid = \"s\"\n[[members]]\nname = \"x\"\n",
		"duplicate member": "[site]\nid = \"s\"\n[[members]]\nid = \"a\"\n[[members]]\nid = \"a\"\n",
		"broken toml":      "[site\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Import(context.Background(), writeRoster(t, content), true); err == nil {
				t.Fatalf("Import() expected error")
			}
		})
	}

	members, err := repo.ListRoster(context.Background(), "s")
	if err != nil {
		t.Fatalf("ListRoster() error = %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("invalid import wrote members: %+v", members)
	}
}

func TestImportRequiresPath(t *testing.T) {
	svc, _ := setupRosterService(t)
	_, err := svc.Import(context.Background(), "  ", false)
	if err == nil || !strings.Contains(err.Error(), "roster file is required") {
		t.Fatalf("Import() error = %v", err)
	}
}
