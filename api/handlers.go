package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/larder/journal"
	"github.com/hazyhaar/larder/record"
	"github.com/hazyhaar/larder/shield"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.store.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"recipes": st.Recipes,
		"prices":  st.Prices,
		"imports": st.Imports,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := shield.GetLogger(r.Context())

	file, header, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, errors.New("upload too large"))
			return
		}
		writeError(w, http.StatusBadRequest, errors.New("multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	res, err := s.ing.Ingest(r.Context(), header.Filename, file)
	if err != nil {
		code := statusFor(err)
		log.Warn("upload failed", "file", header.Filename, "status", code, "error", err)
		writeError(w, code, err)
		return
	}
	if res.Recipes == nil {
		res.Recipes = []record.Recipe{}
	}
	if res.Prices == nil {
		res.Prices = []record.Price{}
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	recipes := s.store.FindRecipes(r.URL.Query().Get("q"))
	if recipes == nil {
		recipes = []record.Recipe{}
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Recipe(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteRecipe(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	shield.GetLogger(r.Context()).Info("recipe deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handlePrices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Prices())
}

func (s *Server) handleDeletePrice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeletePrice(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	shield.GetLogger(r.Context()).Info("price deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handleImports(w http.ResponseWriter, _ *http.Request) {
	imports := s.store.Imports()
	if imports == nil {
		imports = []record.Import{}
	}
	writeJSON(w, http.StatusOK, imports)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []journal.Entry{}})
		return
	}
	entries, err := s.journal.Recent(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	counts, err := s.journal.Counts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "counts": counts})
}

func (s *Server) handleWarehouse(w http.ResponseWriter, r *http.Request) {
	raw, err := s.store.Query(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	report, err := s.calc.Calculate(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
