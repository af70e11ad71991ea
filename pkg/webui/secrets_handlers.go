package webui

import (
	"net/http"

	"github.com/gorilla/mux"

	"roadmapbp/pkg/config"
)

// SecretEntry represents a secret for the API response (name only, no value).
type SecretEntry struct {
	Name string `json:"name"`
}

// handleSecretsList implements GET /api/secrets.
// Returns secret names only, never values.
func (s *Server) handleSecretsList(w http.ResponseWriter, _ *http.Request) {
	names := config.SecretNames()
	entries := make([]SecretEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, SecretEntry{Name: name})
	}
	s.writeJSON(w, http.StatusOK, entries)
	s.logger.Debug("Served secrets list: %d secrets", len(entries))
}

// handleSecretsSet implements POST /api/secrets.
func (s *Server) handleSecretsSet(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if !s.decodeBody(w, r, &reqBody) {
		return
	}

	if reqBody.Name == "" {
		s.writeError(w, http.StatusBadRequest, "secret name is required")
		return
	}
	if reqBody.Value == "" {
		s.writeError(w, http.StatusBadRequest, "secret value is required")
		return
	}
	if !ValidSecretName(reqBody.Name) {
		s.writeError(w, http.StatusBadRequest, "secret name must contain only alphanumeric characters and underscores")
		return
	}

	config.SetSecret(reqBody.Name, reqBody.Value)
	persisted := s.persistSecrets()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"name":      reqBody.Name,
		"persisted": persisted,
	})
	s.logger.Info("Secret %q set", reqBody.Name)
}

// handleSecretsDelete implements DELETE /api/secrets/{name}.
func (s *Server) handleSecretsDelete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !ValidSecretName(name) {
		s.writeError(w, http.StatusBadRequest, "invalid secret name")
		return
	}

	config.DeleteSecret(name)
	persisted := s.persistSecrets()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"name":      name,
		"persisted": persisted,
	})
	s.logger.Info("Secret %q deleted", name)
}

// persistSecrets rewrites the encrypted file. Without a password edits stay
// in memory for the life of the process.
func (s *Server) persistSecrets() bool {
	if s.deps.SecretsPassword == "" || s.deps.SecretsPath == "" {
		s.logger.Warn("No secrets password set - secret stored in memory only")
		return false
	}
	if err := config.SaveSecretsToFile(s.deps.SecretsPath, s.deps.SecretsPassword); err != nil {
		s.logger.Error("Failed to persist secrets to file: %v", err)
		return false
	}
	return true
}

// ValidSecretName reports whether name is non-empty and contains only
// ASCII letters, digits and underscores.
func ValidSecretName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
