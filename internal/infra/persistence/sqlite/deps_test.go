package sqlite

import (
	"go/build"
	"strings"
	"testing"
)

var allowedModuleImports = map[string]struct{}{
	"yojana/pkg/domain":                            {},
	"yojana/internal/infra/persistence/memory":     {},
	"yojana/internal/infra/persistence/migrations": {},
}

func TestImportsStayWithinPersistence(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	for _, imp := range pkg.Imports {
		if !strings.HasPrefix(imp, "yojana/") {
			continue
		}
		if _, ok := allowedModuleImports[imp]; ok {
			continue
		}
		t.Fatalf("unexpected dependency: %s", imp)
	}
}
