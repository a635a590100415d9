package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
)

func writeRemaps(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remaps.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRemaps(t *testing.T) {
	path := writeRemaps(t, `
sentinels:
  - sin_id
  - SIN_CLIENT_ID_MARIA
tenants:
  GT:
    BANCO_GYT_OLD: BANCO_GYT
  CA-SV:
    DAVIVIENDA_SV: DAVIVIENDA
`)

	rs, err := LoadRemaps(path, validator.New())
	if err != nil {
		t.Fatal(err)
	}

	if len(rs.Sentinels) != 2 {
		t.Errorf("sentinels = %v", rs.Sentinels)
	}

	gt := rs.Mappings("GT")
	if gt["BANCO_GYT_OLD"] != "BANCO_GYT" {
		t.Errorf("GT mappings = %v", gt)
	}

	// A tenant without remaps is normal.
	if m := rs.Mappings("WW"); m != nil {
		t.Errorf("WW mappings = %v, want none", m)
	}
}

func TestLoadRemapsRejectsEmptyTarget(t *testing.T) {
	path := writeRemaps(t, `
tenants:
  GT:
    BANCO_GYT_OLD: ""
`)

	if _, err := LoadRemaps(path, validator.New()); err == nil {
		t.Fatal("want error for empty remap target")
	}
}

func TestMappingsNilSet(t *testing.T) {
	var rs *RemapSet
	if m := rs.Mappings("GT"); m != nil {
		t.Errorf("nil set mappings = %v", m)
	}
}
