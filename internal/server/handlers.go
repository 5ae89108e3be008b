package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"example.com/relgate/internal/common"
	"example.com/relgate/internal/crypto"
	"example.com/relgate/internal/manifest"
	"example.com/relgate/internal/report"
	"example.com/relgate/internal/validate"
)

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.publicKey == nil {
		http.Error(w, "no publisher key configured", http.StatusServiceUnavailable)
		return
	}
	req, err := s.decodeValidateRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Archive == "" || req.Manifest == "" {
		http.Error(w, "archive and manifest required", http.StatusBadRequest)
		return
	}
	lang, err := report.ParseLanguage(req.Lang)
	if err != nil {
		http.Error(w, fmt.Sprintf("language: %v", err), http.StatusBadRequest)
		return
	}
	archivePath, err := s.resolvePath(req.Archive)
	if err != nil {
		http.Error(w, fmt.Sprintf("resolve archive: %v", err), http.StatusBadRequest)
		return
	}
	manifestPath, err := s.resolvePath(req.Manifest)
	if err != nil {
		http.Error(w, fmt.Sprintf("resolve manifest: %v", err), http.StatusBadRequest)
		return
	}

	strict := s.strict
	if req.Strict != nil {
		strict = *req.Strict
	}
	res, verr := validate.Files(manifestPath, archivePath, s.publicKey, validate.Options{
		Strict:      strict,
		Concurrency: s.concurrency,
	})
	if verr != nil && res == nil && !isValidationFailure(verr) {
		http.Error(w, fmt.Sprintf("validate: %v", verr), http.StatusBadRequest)
		return
	}

	rep := report.New(res, verr)
	outputs, err := s.saveReportArtifacts(rep, req.PDF, lang)
	if err != nil {
		http.Error(w, fmt.Sprintf("write report: %v", err), http.StatusInternalServerError)
		return
	}
	common.Logf("validate %s: pass=%v missing=%d mismatched=%d extra=%d",
		filepath.Base(archivePath), rep.Summary.Pass, rep.Summary.Missing, rep.Summary.Mismatched, rep.Summary.Extra)

	resp := struct {
		Report  report.Report `json:"report"`
		Outputs []ArtifactRef `json:"outputs"`
	}{
		Report:  rep,
		Outputs: outputs,
	}
	writeJSON(w, http.StatusOK, resp)
}

type validateRequest struct {
	Archive  string `json:"archive"`
	Manifest string `json:"manifest"`
	Strict   *bool  `json:"strict"`
	Lang     string `json:"lang"`
	PDF      bool   `json:"pdf"`
}

// decodeValidateRequest accepts either a JSON body referencing uploaded
// artifacts or server paths, or a direct multipart upload carrying "archive"
// and "manifest" file parts.
func (s *Server) decodeValidateRequest(r *http.Request) (validateRequest, error) {
	var req validateRequest
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "multipart/") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid json: %v", err)
		}
		return req, nil
	}
	if err := r.ParseMultipartForm(512 << 20); err != nil {
		return req, fmt.Errorf("parse multipart: %v", err)
	}
	for _, field := range []string{"archive", "manifest"} {
		files := r.MultipartForm.File[field]
		if len(files) != 1 {
			return req, fmt.Errorf("exactly one %q file part required", field)
		}
		ref, err := s.saveUploadedFile(files[0])
		if err != nil {
			return req, fmt.Errorf("save %s: %v", field, err)
		}
		if field == "archive" {
			req.Archive = ref.ID
		} else {
			req.Manifest = ref.ID
		}
	}
	if v := r.FormValue("strict"); v != "" {
		strict := v == "true" || v == "1"
		req.Strict = &strict
	}
	req.Lang = r.FormValue("lang")
	if v := r.FormValue("pdf"); v == "true" || v == "1" {
		req.PDF = true
	}
	return req, nil
}

// isValidationFailure distinguishes a payload that failed a check from a
// request the server could not process at all. Failures still produce a
// report; processing errors surface as HTTP errors.
func isValidationFailure(err error) bool {
	var sigErr *validate.SignatureError
	var intErr *validate.IntegrityError
	var polErr *validate.PolicyError
	var dupErr *validate.DuplicateEntryError
	var structErr *manifest.StructuralError
	var encErr *manifest.EncodingError
	var pathErr *manifest.PathSecurityError
	return errors.As(err, &sigErr) || errors.As(err, &intErr) ||
		errors.As(err, &polErr) || errors.As(err, &dupErr) ||
		errors.As(err, &structErr) || errors.As(err, &encErr) ||
		errors.As(err, &pathErr)
}

func (s *Server) saveReportArtifacts(rep report.Report, withPDF bool, lang report.Language) ([]ArtifactRef, error) {
	jsonPath, err := s.tempPath("report-*.json")
	if err != nil {
		return nil, err
	}
	if err := report.SaveJSON(rep, jsonPath); err != nil {
		return nil, err
	}
	art, err := s.addArtifact(jsonPath, "report.json", "application/json", "report")
	if err != nil {
		return nil, err
	}
	outputs := []ArtifactRef{toRef(art)}

	if len(rep.Findings) > 0 {
		ndPath, err := s.tempPath("findings-*.ndjson")
		if err != nil {
			return nil, err
		}
		if err := report.SaveFindingsNDJSON(rep, ndPath); err != nil {
			return nil, err
		}
		art, err := s.addArtifact(ndPath, "findings.ndjson", "application/x-ndjson", "findings")
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, toRef(art))
	}

	if withPDF {
		pdfPath, err := s.tempPath("report-*.pdf")
		if err != nil {
			return nil, err
		}
		if err := report.SavePDF(rep, lang, pdfPath); err != nil {
			return nil, err
		}
		art, err := s.addArtifact(pdfPath, "report.pdf", "application/pdf", "report")
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, toRef(art))
	}
	return outputs, nil
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PayloadDir string `json:"payloadDir"`
		Version    string `json:"version"`
		Sign       bool   `json:"sign"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if req.PayloadDir == "" {
		http.Error(w, "payloadDir required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Version) == "" {
		http.Error(w, "version required", http.StatusBadRequest)
		return
	}
	if req.Sign && s.signingKey == nil {
		http.Error(w, "no signing key configured", http.StatusServiceUnavailable)
		return
	}
	root, err := s.resolvePath(req.PayloadDir)
	if err != nil {
		http.Error(w, fmt.Sprintf("resolve payload dir: %v", err), http.StatusBadRequest)
		return
	}
	m, err := manifest.Build(root, req.Version, manifest.BuildOptions{Concurrency: s.concurrency})
	if err != nil {
		http.Error(w, fmt.Sprintf("build manifest: %v", err), http.StatusBadRequest)
		return
	}
	if req.Sign {
		sig, err := crypto.Sign(m.CanonicalBytes(), s.signingKey)
		if err != nil {
			http.Error(w, fmt.Sprintf("sign manifest: %v", err), http.StatusInternalServerError)
			return
		}
		m = m.WithSignature(sig)
	}
	outPath, err := s.tempPath("manifest-*.json")
	if err != nil {
		http.Error(w, fmt.Sprintf("manifest temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := manifest.Save(m, outPath); err != nil {
		http.Error(w, fmt.Sprintf("write manifest: %v", err), http.StatusInternalServerError)
		return
	}
	art, err := s.addArtifact(outPath, "manifest.json", "application/json", "manifest")
	if err != nil {
		http.Error(w, fmt.Sprintf("register manifest: %v", err), http.StatusInternalServerError)
		return
	}
	common.Logf("manifest %s: %d files, version %s", art.ID, len(m.Files), m.Version)
	resp := struct {
		Manifest    *manifest.Manifest `json:"manifest"`
		Fingerprint string             `json:"fingerprint"`
		Artifact    ArtifactRef        `json:"artifact"`
	}{
		Manifest:    m,
		Fingerprint: m.Fingerprint(),
		Artifact:    toRef(art),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.listArtifacts())
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		s.handleArtifacts(w, r)
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	disposition := fmt.Sprintf("attachment; filename=\"%s\"", art.Name)
	w.Header().Set("Content-Disposition", disposition)
	io.Copy(w, f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := struct {
		Status  string `json:"status"`
		Signing bool   `json:"signing"`
		Strict  bool   `json:"strict"`
	}{
		Status:  "ok",
		Signing: s.signingKey != nil,
		Strict:  s.strict,
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
