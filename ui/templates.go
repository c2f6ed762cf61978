package ui

import (
	"bytes"
	"log"
	"net/http"
)

// renderTemplate executes a template with the given data. The template
// runs against a buffer first to catch errors before any bytes reach
// the response.
func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		log.Printf("Template error for %s: %v", templateName, err)
		http.Error(w, "Template rendering failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Error writing template response: %v", err)
	}
}
