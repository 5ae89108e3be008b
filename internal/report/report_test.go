package report

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"example.com/relgate/internal/validate"
)

func passingResult() *validate.Result {
	return &validate.Result{
		Version:     "1.0.0",
		Fingerprint: "abc123",
	}
}

func TestNewPassingReport(t *testing.T) {
	rep := New(passingResult(), nil)
	if !rep.SignatureValid {
		t.Error("signature must be valid on a passing run")
	}
	if !rep.Summary.Pass {
		t.Error("summary must report pass")
	}
	if rep.Error != "" {
		t.Errorf("error = %q", rep.Error)
	}
	if len(rep.Findings) != 0 {
		t.Errorf("findings = %v", rep.Findings)
	}
	if rep.GeneratedAt.IsZero() {
		t.Error("generatedAt not set")
	}
}

func TestNewSignatureFailure(t *testing.T) {
	rep := New(nil, &validate.SignatureError{})
	if rep.SignatureValid {
		t.Error("signature must be invalid")
	}
	if rep.Summary.Pass {
		t.Error("summary must report fail")
	}
	if rep.Error == "" {
		t.Error("error text missing")
	}
}

func TestNewIntegrityFailure(t *testing.T) {
	res := &validate.Result{
		Version:     "1.0.0",
		Fingerprint: "abc123",
		Missing:     []string{"gone.txt"},
		Mismatched:  []string{"changed.bin"},
	}
	rep := New(res, &validate.IntegrityError{Missing: res.Missing, Mismatched: res.Mismatched})
	if !rep.SignatureValid {
		t.Error("integrity failure implies the signature already verified")
	}
	if rep.Summary.Pass {
		t.Error("summary must report fail")
	}
	if rep.Summary.Missing != 1 || rep.Summary.Mismatched != 1 {
		t.Errorf("summary = %+v", rep.Summary)
	}
	kinds := map[string]string{}
	for _, f := range rep.Findings {
		kinds[f.Path] = f.Kind
		if f.Severity != "error" {
			t.Errorf("finding %s severity = %q", f.Path, f.Severity)
		}
	}
	if kinds["gone.txt"] != "missing" || kinds["changed.bin"] != "mismatched" {
		t.Errorf("findings = %v", rep.Findings)
	}
}

func TestNewExtraSeverityDependsOnStrict(t *testing.T) {
	permissive := &validate.Result{Version: "1.0", Extra: []string{"debug.log"}}
	rep := New(permissive, nil)
	if !rep.Summary.Pass {
		t.Error("permissive extras must still pass")
	}
	if len(rep.Findings) != 1 || rep.Findings[0].Severity != "warning" {
		t.Errorf("findings = %v", rep.Findings)
	}

	strict := &validate.Result{Version: "1.0", Extra: []string{"debug.log"}, Strict: true}
	rep = New(strict, &validate.PolicyError{Extra: strict.Extra})
	if rep.Summary.Pass {
		t.Error("strict extras must fail")
	}
	if len(rep.Findings) != 1 || rep.Findings[0].Severity != "error" {
		t.Errorf("findings = %v", rep.Findings)
	}
	if !rep.SignatureValid {
		t.Error("policy failure implies the signature already verified")
	}
}

func TestSaveLoadJSON(t *testing.T) {
	rep := New(&validate.Result{Version: "2.0", Fingerprint: "ff", Missing: []string{"a"}},
		&validate.IntegrityError{Missing: []string{"a"}})
	path := filepath.Join(t.TempDir(), "report.json")
	if err := SaveJSON(rep, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Version != "2.0" || loaded.Summary.Missing != 1 || loaded.SignatureValid != rep.SignatureValid {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestSaveFindingsNDJSON(t *testing.T) {
	rep := Report{Findings: []Finding{
		{Kind: "missing", Path: "a.txt", Severity: "error"},
		{Kind: "extra", Path: "b.log", Severity: "warning"},
	}}
	path := filepath.Join(t.TempDir(), "findings.ndjson")
	if err := SaveFindingsNDJSON(rep, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var lines []Finding
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var finding Finding
		if err := json.Unmarshal(scanner.Bytes(), &finding); err != nil {
			t.Fatalf("line %d: %v", len(lines)+1, err)
		}
		lines = append(lines, finding)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0].Path != "a.txt" || lines[1].Kind != "extra" {
		t.Errorf("findings = %v", lines)
	}
}

func TestSavePDF(t *testing.T) {
	rep := New(&validate.Result{
		Version:     "1.0.0",
		Fingerprint: "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0",
		Missing:     []string{"gone.txt"},
	}, &validate.IntegrityError{Missing: []string{"gone.txt"}})
	for _, lang := range []Language{LangEnglish, LangGerman} {
		path := filepath.Join(t.TempDir(), string(lang)+".pdf")
		if err := SavePDF(rep, lang, path); err != nil {
			t.Fatalf("save pdf (%s): %v", lang, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Size() == 0 {
			t.Fatalf("empty pdf for %s", lang)
		}
	}
}

func TestTranslatorFallback(t *testing.T) {
	de := NewTranslator(LangGerman)
	if de.T("title") != "Prüfbericht der Update-Payload" {
		t.Errorf("de title = %q", de.T("title"))
	}
	if de.T("no-such-key") != "no-such-key" {
		t.Errorf("missing key = %q", de.T("no-such-key"))
	}
	en := NewTranslator("zz")
	if en.Lang() != LangEnglish {
		t.Errorf("unknown language resolved to %q", en.Lang())
	}
}

func TestParseLanguage(t *testing.T) {
	for _, in := range []string{"", "en", "EN-us", "english"} {
		lang, err := ParseLanguage(in)
		if err != nil || lang != LangEnglish {
			t.Errorf("ParseLanguage(%q) = %v, %v", in, lang, err)
		}
	}
	for _, in := range []string{"de", "DE-de", "deutsch"} {
		lang, err := ParseLanguage(in)
		if err != nil || lang != LangGerman {
			t.Errorf("ParseLanguage(%q) = %v, %v", in, lang, err)
		}
	}
	if _, err := ParseLanguage("fr"); err == nil {
		t.Error("unsupported language accepted")
	}
}

func TestFingerprintQR(t *testing.T) {
	png, err := FingerprintQR("AB12cd34", 128)
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	if len(png) == 0 {
		t.Fatal("empty png")
	}
	if _, err := FingerprintQR("  ", 128); err == nil {
		t.Fatal("empty fingerprint accepted")
	}
}
