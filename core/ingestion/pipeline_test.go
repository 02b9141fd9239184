package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLifecycleLoadDelimited(t *testing.T) {
	p := writeFile(t, t.TempDir(), "grille.csv", []byte(semicolonGrid))

	res, err := NewLifecycle(DefaultOptions()).Load(p)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(res.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(res.Rows))
	}
	if res.Format.Delimiter != ';' || res.Format.HeaderRow != 2 {
		t.Errorf("format = %+v", res.Format)
	}
	if res.Signature == "" || res.Fingerprint == 0 {
		t.Errorf("missing identity: %q %v", res.Signature, res.Fingerprint)
	}
}

func TestLifecycleLoadLegacyEncoding(t *testing.T) {
	data := []byte("CLUSTER;APPRO;MIN;MAX;N;L;U;N;L;U\n" +
		"Pharmacie \xc9vry;Direct;0;1000;0,1;0,1;0,1;0,1;0,1;0,1\n")
	p := writeFile(t, t.TempDir(), "grille.csv", data)

	res, err := NewLifecycle(DefaultOptions()).Load(p)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if res.Rows[0].Cluster != "Pharmacie Évry" {
		t.Errorf("cluster = %q", res.Rows[0].Cluster)
	}
	if res.Format.Encoding != "windows-1252" {
		t.Errorf("encoding = %s", res.Format.Encoding)
	}
}

func TestLifecycleMissingFile(t *testing.T) {
	_, err := NewLifecycle(DefaultOptions()).Load(filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.IsType(err, errors.TypeSourceNotFound) {
		t.Fatalf("error = %v, want SOURCE_NOT_FOUND", err)
	}
}

func TestLifecycleSignatureTracksContent(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "grille.csv", []byte(commaGrid))

	first, err := ReadSource(p)
	if err != nil {
		t.Fatalf("ReadSource() error = %v", err)
	}
	writeFile(t, dir, "grille.csv", []byte(commaGrid+"Aprium,Grossiste,0,100000,0.1,0.1,0.1,0.1,0.1,0.1\n"))
	second, err := ReadSource(p)
	if err != nil {
		t.Fatalf("ReadSource() error = %v", err)
	}

	if first.Signature() == second.Signature() {
		t.Error("signature unchanged after rewrite with a different size")
	}
	if first.Fingerprint == second.Fingerprint {
		t.Error("fingerprint unchanged after content change")
	}
}

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestLifecycleLoadSpreadsheet(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"Grille 2026"},
		{"CLUSTER", "APPROVISIONNEMENT", "CA mini", "CA maxi", "NESTLE", "LACTALIS", "NUTRICIA", "NESTLE", "LACTALIS", "NUTRICIA"},
		{"Aprium", "Direct", 0, 100000, 0.25, "NON ELIGIBLE", 0.2, 0.18, 0.1, 0.15},
		{"Aprium", "Grossiste", 0, 100000, 0.15, 0.08, 0.12, 0.14, 0.07},
	})
	p := writeFile(t, t.TempDir(), "grille_remises.xlsx", data)

	res, err := NewLifecycle(DefaultOptions()).Load(p)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if res.Format.Kind != KindSpreadsheet || res.Format.HeaderRow != 1 {
		t.Errorf("format = %+v", res.Format)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}

	direct := res.Rows[0]
	if direct.Line != 3 {
		t.Errorf("line = %d, want 3", direct.Line)
	}
	if v, _ := direct.Rate(types.SupplierNestle, 2026); !v.Value.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("NESTLE_2026 = %s", v.Value)
	}
	if v, _ := direct.Rate(types.SupplierLactalis, 2026); v.Status != types.RateIneligible {
		t.Errorf("LACTALIS_2026 status = %s", v.Status)
	}

	// the short row is padded, its last rate is missing
	if v, _ := res.Rows[1].Rate(types.SupplierNutricia, 2025); v.Status != types.RateMissing {
		t.Errorf("padded cell status = %s", v.Status)
	}
}

func TestSpreadsheetWithoutHeader(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{{"nothing"}, {"to see"}})

	_, err := ReadSpreadsheet(data, DefaultOptions())
	if !errors.IsType(err, errors.TypeHeaderNotFound) {
		t.Fatalf("error = %v, want HEADER_NOT_FOUND", err)
	}
}

func TestIsSpreadsheet(t *testing.T) {
	if !IsSpreadsheet("grille.XLSX", nil) {
		t.Error("extension not recognized")
	}
	if !IsSpreadsheet("grille.bin", []byte("PK\x03\x04rest")) {
		t.Error("zip magic not recognized")
	}
	if IsSpreadsheet("grille.csv", []byte("CLUSTER;APPRO")) {
		t.Error("csv taken for a spreadsheet")
	}
}

func TestLocator(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		p := writeFile(t, t.TempDir(), "anything.txt", []byte("x"))
		got, err := (&Locator{Path: p}).Locate()
		if err != nil || got != p {
			t.Errorf("Locate() = %q, %v", got, err)
		}
	})

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := (&Locator{Path: filepath.Join(t.TempDir(), "nope.csv")}).Locate()
		if !errors.IsType(err, errors.TypeSourceNotFound) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("candidate order", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "tarifs.csv", []byte("x"))
		want := writeFile(t, dir, "grille.csv", []byte("x"))

		l := DefaultLocator()
		l.SearchDirs = []string{dir}
		got, err := l.Locate()
		if err != nil || got != want {
			t.Errorf("Locate() = %q, %v want %q", got, err, want)
		}
	})

	t.Run("keyword fallback", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "notes.csv", []byte("x"))
		want := writeFile(t, dir, "Grille_2026_v2.csv", []byte("x"))

		l := DefaultLocator()
		l.SearchDirs = []string{dir}
		got, err := l.Locate()
		if err != nil || got != want {
			t.Errorf("Locate() = %q, %v want %q", got, err, want)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		l := DefaultLocator()
		l.SearchDirs = []string{t.TempDir()}
		_, err := l.Locate()
		e, ok := errors.As(err)
		if !ok || e.Type != errors.TypeSourceNotFound {
			t.Fatalf("error = %v", err)
		}
	})
}
