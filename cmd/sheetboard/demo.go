package main

import (
	"time"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
	"github.com/goliatone/go-sheetboard/pkg/sheetapi"
)

func demoConfig() sheetboard.Config {
	return sheetboard.Config{
		API:     sheetboard.APIConfig{BaseURL: "mock://sheetboard"},
		Dataset: "Tareas",
		Branding: sheetboard.BrandingConfig{
			Title:    "Tareas académicas",
			Subtitle: "Tablero de demostración",
		},
		Logbook:  sheetboard.LogbookConfig{DefaultPerson: "Coordinación"},
		Location: "demo",
	}
}

// demoBackend seeds deadlines relative to today so every highlight class
// shows up.
func demoBackend() *sheetapi.MockClient {
	day := func(offset int) string {
		return time.Now().AddDate(0, 0, offset).Format("2006-01-02")
	}
	headers := []string{"ID", "Tarea", "Persona encargada", "Estado", "Urgencia", "Fecha límite", "Documento y Herramientas"}
	rows := []sheetboard.Row{
		sheetboard.TextRow("T-1", "Planear unidad de ritmo", "Ana", "En curso", "Alta", day(-2), "https://docs.example.com/ritmo"),
		sheetboard.TextRow("T-2", "Revisar repertorio", "Luis", "Pendiente", "Media", day(0), ""),
		sheetboard.TextRow("T-3", "Informe trimestral", "Ana", "Pendiente", "Alta", day(2), "https://docs.example.com/informe"),
		sheetboard.TextRow("T-4", "Actualizar rúbricas", "Marta", "Cumplida", "Baja", day(-10), ""),
		sheetboard.TextRow("T-5", "Ensayo general", "", "Por hacer", "Media", day(15), ""),
	}
	return sheetapi.NewMockClient(headers, rows)
}
