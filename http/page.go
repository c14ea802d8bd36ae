package http

import (
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"winequality/ml"
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type formField struct {
	ml.FieldSpec
	Value string
	Error string
}

type pageData struct {
	Fields    []formField
	Label     ml.QualityLabel
	Error     string
	Wines     []ml.SampleWine
	Reference []ml.QualityReferenceRow
	Model     ml.ModelInfo
}

func (h *Handlers) newPage() pageData {
	specs := h.Schema.Fields()
	fields := make([]formField, len(specs))
	for i, spec := range specs {
		fields[i] = formField{FieldSpec: spec, Value: formatValue(spec.Default)}
	}
	return pageData{
		Fields:    fields,
		Wines:     ml.SampleWines(),
		Reference: ml.QualityReference(),
		Model:     h.Model,
	}
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, http.StatusOK, h.newPage())
}

func (h *Handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		page := h.newPage()
		page.Error = "could not read the form"
		h.renderPage(w, http.StatusBadRequest, page)
		return
	}

	input := make(map[string]string, h.Schema.Len())
	for _, name := range h.Schema.Names() {
		if _, ok := r.PostForm[name]; ok {
			input[name] = r.PostForm.Get(name)
		}
	}

	page := h.newPage()
	for i := range page.Fields {
		if raw, ok := input[page.Fields[i].Name]; ok {
			page.Fields[i].Value = raw
		}
	}

	result, err := h.predict(r.Context(), "form", func(c *ml.FeatureCollector) error {
		return c.Apply(input)
	})
	if err != nil {
		if fields := ml.FieldErrors(err); len(fields) > 0 {
			byName := make(map[string]string, len(fields))
			for _, fe := range fields {
				byName[fe.Field] = fe.Err.Error()
			}
			for i := range page.Fields {
				page.Fields[i].Error = byName[page.Fields[i].Name]
			}
			page.Error = "Please correct the highlighted values."
			h.renderPage(w, http.StatusUnprocessableEntity, page)
			return
		}
		page.Error = "Prediction failed: " + err.Error()
		if errors.Is(err, ml.ErrUnmappedClassCode) {
			page.Error = "The model returned a class this service cannot label."
		}
		h.renderPage(w, http.StatusInternalServerError, page)
		return
	}

	page.Label = result.Label
	h.renderPage(w, http.StatusOK, page)
}

func (h *Handlers) renderPage(w http.ResponseWriter, status int, page pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTemplate.Execute(w, page); err != nil {
		h.Logger.Error("render page", zap.Error(err))
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
